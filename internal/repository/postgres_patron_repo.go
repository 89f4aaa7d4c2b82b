package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/seatman/internal/model"
)

// PostgresPatronRepo はPostgreSQLを使用した利用者リポジトリ。
type PostgresPatronRepo struct {
	db *sql.DB
}

// NewPostgresPatronRepo はPostgresPatronRepoを生成する。
func NewPostgresPatronRepo(db *sql.DB) *PostgresPatronRepo {
	return &PostgresPatronRepo{db: db}
}

const patronColumns = `id, category, name, email, phone, level, program,
	department, national_id, photo_url, total_hours, created_at, updated_at`

// scanPatron は1行分の利用者データをスキャンする。
func scanPatron(row interface{ Scan(dest ...any) error }) (*model.Patron, error) {
	p := &model.Patron{}
	err := row.Scan(
		&p.ID, &p.Category, &p.Name, &p.Email, &p.Phone,
		&p.Level, &p.Program, &p.Department, &p.NationalID,
		&p.PhotoURL, &p.TotalHours, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindByID は指定IDの利用者を取得する。見つからない場合はnilを返す。
func (r *PostgresPatronRepo) FindByID(ctx context.Context, id string) (*model.Patron, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+patronColumns+` FROM patrons WHERE id = $1`,
		id,
	)

	patron, err := scanPatron(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patron: %w", err)
	}

	return patron, nil
}

// List は全利用者を作成日時の降順で返す。
func (r *PostgresPatronRepo) List(ctx context.Context) ([]*model.Patron, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+patronColumns+` FROM patrons ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list patrons: %w", err)
	}
	defer rows.Close()

	var patrons []*model.Patron
	for rows.Next() {
		patron, err := scanPatron(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patron: %w", err)
		}
		patrons = append(patrons, patron)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patrons: %w", err)
	}

	return patrons, nil
}

// NextID は指定区分の次の利用者IDを採番する。
// 既存IDの連番部分の最大値+1を4桁ゼロ埋めで返す（例: STU-0042）。
func (r *PostgresPatronRepo) NextID(ctx context.Context, category model.PatronCategory) (string, error) {
	prefix := category.IDPrefix()
	if prefix == "" {
		return "", fmt.Errorf("invalid patron category: %s", category)
	}

	var next int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(CAST(split_part(id, '-', 2) AS INTEGER)), 0) + 1
		 FROM patrons WHERE id LIKE $1 || '-%'`,
		prefix,
	).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("failed to allocate patron id: %w", err)
	}

	return fmt.Sprintf("%s-%04d", prefix, next), nil
}

// Create は利用者を作成する。
func (r *PostgresPatronRepo) Create(ctx context.Context, patron *model.Patron) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO patrons (id, category, name, email, phone, level, program,
			department, national_id, photo_url, total_hours, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())`,
		patron.ID, patron.Category, patron.Name, patron.Email, patron.Phone,
		patron.Level, patron.Program, patron.Department, patron.NationalID,
		patron.PhotoURL, patron.TotalHours,
	)
	if err != nil {
		return fmt.Errorf("failed to create patron: %w", err)
	}
	return nil
}

// Update は利用者情報を更新する。
func (r *PostgresPatronRepo) Update(ctx context.Context, patron *model.Patron) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE patrons
		 SET category = $2, name = $3, email = $4, phone = $5, level = $6,
		     program = $7, department = $8, national_id = $9, photo_url = $10,
		     updated_at = now()
		 WHERE id = $1`,
		patron.ID, patron.Category, patron.Name, patron.Email, patron.Phone,
		patron.Level, patron.Program, patron.Department, patron.NationalID,
		patron.PhotoURL,
	)
	if err != nil {
		return fmt.Errorf("failed to update patron: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの利用者を削除する。関連セッションはCASCADE削除される。
func (r *PostgresPatronRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM patrons WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete patron: %w", err)
	}
	return nil
}

// AddTotalHours は累積利用時間に指定時間を加算する。
func (r *PostgresPatronRepo) AddTotalHours(ctx context.Context, id string, hours float64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE patrons SET total_hours = total_hours + $2, updated_at = now() WHERE id = $1`,
		id, hours,
	)
	if err != nil {
		return fmt.Errorf("failed to add total hours: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PatronRepository = (*PostgresPatronRepo)(nil)
