package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/seatman/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した来館セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

const sessionColumns = `id, patron_id, check_in_at, check_out_at, duration_min,
	notes, alert_triggered, created_at, updated_at`

// scanSession は1行分のセッションデータをスキャンする。
func scanSession(row interface{ Scan(dest ...any) error }) (*model.Session, error) {
	s := &model.Session{}
	var checkOut sql.NullTime
	var duration sql.NullInt64
	err := row.Scan(
		&s.ID, &s.PatronID, &s.CheckInAt, &checkOut, &duration,
		&s.Notes, &s.AlertTriggered, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if checkOut.Valid {
		t := checkOut.Time
		s.CheckOutAt = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationMin = &d
	}
	return s, nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`,
		id,
	)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// FindActiveByPatronID は指定利用者の入館中セッションを取得する。
// 入館中でない場合はnilを返す。
func (r *PostgresSessionRepo) FindActiveByPatronID(ctx context.Context, patronID string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE patron_id = $1 AND check_out_at IS NULL`,
		patronID,
	)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}

	return session, nil
}

// querySessions は複数行のセッションクエリを実行してスキャンする。
func (r *PostgresSessionRepo) querySessions(ctx context.Context, query string, args ...any) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// ListActive は入館中の全セッションを入館時刻の昇順で返す。
func (r *PostgresSessionRepo) ListActive(ctx context.Context) ([]*model.Session, error) {
	return r.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE check_out_at IS NULL
		 ORDER BY check_in_at ASC`,
	)
}

// ListClosedRecent は退館済みセッションを退館時刻の降順でlimit件まで返す。
func (r *PostgresSessionRepo) ListClosedRecent(ctx context.Context, limit int) ([]*model.Session, error) {
	return r.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE check_out_at IS NOT NULL
		 ORDER BY check_out_at DESC
		 LIMIT $1`,
		limit,
	)
}

// ListSince は指定時刻以降に入館したセッションを入館時刻の降順で返す。
func (r *PostgresSessionRepo) ListSince(ctx context.Context, since time.Time) ([]*model.Session, error) {
	return r.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE check_in_at >= $1
		 ORDER BY check_in_at DESC`,
		since,
	)
}

// Create は新規セッションを作成する。IDが未設定の場合はUUIDを採番する。
// 部分一意インデックスにより同一利用者の入館中セッションは高々1件に制約されており、
// 違反した場合はErrActiveSessionExistsを返す。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, patron_id, check_in_at, notes, alert_triggered, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())`,
		session.ID, session.PatronID, session.CheckInAt, session.Notes, session.AlertTriggered,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrActiveSessionExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Close はセッションを退館状態に遷移させる。
// check_out_at IS NULL を条件に含めることで、並行する退館要求があっても
// 先着の1件だけが成立する（後続はfalseを返して無害に終わる）。
func (r *PostgresSessionRepo) Close(ctx context.Context, id string, checkOutAt time.Time, durationMin int, notes string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET check_out_at = $2, duration_min = $3, notes = $4, updated_at = now()
		 WHERE id = $1 AND check_out_at IS NULL`,
		id, checkOutAt, durationMin, notes,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected == 1, nil
}

// MarkAlertTriggered はアラート送信済みフラグを立てる。
// alert_triggered = FALSE を条件に含めることで高々1回の遷移を保証する。
func (r *PostgresSessionRepo) MarkAlertTriggered(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET alert_triggered = TRUE, updated_at = now()
		 WHERE id = $1 AND alert_triggered = FALSE`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark alert triggered: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected == 1, nil
}

// DeleteClosedBefore は指定時刻より前に退館したセッションを一括削除し、件数を返す。
func (r *PostgresSessionRepo) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE check_out_at IS NOT NULL AND check_out_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete closed sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return deleted, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
