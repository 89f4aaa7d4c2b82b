package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/seatman/internal/model"
)

// MemorySessionRepo はインメモリの来館セッションリポジトリ。
// オフライン/デモモードで使用する。リモートストアへの書き込みは発生せず、
// 変更は同期的にローカル状態へ反映される。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	seq      int
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*model.Session),
	}
}

// nextLocalID はローカル一時トークン形式のセッションIDを採番する。
// 「local-<ミリ秒タイムスタンプ>」形式で、同一ミリ秒内の連続採番では
// 連番サフィックスで衝突を回避する。リモートIDと衝突することはなく、
// リモートストアへ永続化されることもない。
func (r *MemorySessionRepo) nextLocalID(now time.Time) string {
	id := fmt.Sprintf("local-%d", now.UnixMilli())
	if _, exists := r.sessions[id]; !exists {
		return id
	}
	r.seq++
	return fmt.Sprintf("%s-%d", id, r.seq)
}

// copySession はセッションのディープコピーを返す。
// 呼び出し元の変更が内部状態へ漏れないようにする。
func copySession(s *model.Session) *model.Session {
	c := *s
	if s.CheckOutAt != nil {
		t := *s.CheckOutAt
		c.CheckOutAt = &t
	}
	if s.DurationMin != nil {
		d := *s.DurationMin
		c.DurationMin = &d
	}
	return &c
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *MemorySessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

// FindActiveByPatronID は指定利用者の入館中セッションを取得する。
func (r *MemorySessionRepo) FindActiveByPatronID(ctx context.Context, patronID string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.PatronID == patronID && s.Active() {
			return copySession(s), nil
		}
	}
	return nil, nil
}

// ListActive は入館中の全セッションを入館時刻の昇順で返す。
func (r *MemorySessionRepo) ListActive(ctx context.Context) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*model.Session
	for _, s := range r.sessions {
		if s.Active() {
			sessions = append(sessions, copySession(s))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CheckInAt.Before(sessions[j].CheckInAt)
	})
	return sessions, nil
}

// ListClosedRecent は退館済みセッションを退館時刻の降順でlimit件まで返す。
func (r *MemorySessionRepo) ListClosedRecent(ctx context.Context, limit int) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*model.Session
	for _, s := range r.sessions {
		if !s.Active() {
			sessions = append(sessions, copySession(s))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CheckOutAt.After(*sessions[j].CheckOutAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// ListSince は指定時刻以降に入館したセッションを入館時刻の降順で返す。
func (r *MemorySessionRepo) ListSince(ctx context.Context, since time.Time) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*model.Session
	for _, s := range r.sessions {
		if !s.CheckInAt.Before(since) {
			sessions = append(sessions, copySession(s))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CheckInAt.After(sessions[j].CheckInAt)
	})
	return sessions, nil
}

// Create は新規セッションを作成する。IDが未設定の場合はローカル一時トークンを採番する。
// 同一利用者の入館中セッションが既に存在する場合はErrActiveSessionExistsを返す。
func (r *MemorySessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.PatronID == session.PatronID && s.Active() {
			return ErrActiveSessionExists
		}
	}

	if session.ID == "" {
		session.ID = r.nextLocalID(session.CheckInAt)
	}
	session.CreatedAt = session.CheckInAt
	session.UpdatedAt = session.CheckInAt

	r.sessions[session.ID] = copySession(session)
	return nil
}

// Close はセッションを退館状態に遷移させる。
// 入館中の場合のみ成立しtrueを返す。既に退館済み・未存在の場合はfalse（冪等）。
func (r *MemorySessionRepo) Close(ctx context.Context, id string, checkOutAt time.Time, durationMin int, notes string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || !s.Active() {
		return false, nil
	}

	t := checkOutAt
	d := durationMin
	s.CheckOutAt = &t
	s.DurationMin = &d
	s.Notes = notes
	s.UpdatedAt = checkOutAt
	return true, nil
}

// MarkAlertTriggered はアラート送信済みフラグを立てる。
// 未送信から送信済みへ遷移した場合のみtrueを返す。
func (r *MemorySessionRepo) MarkAlertTriggered(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.AlertTriggered {
		return false, nil
	}

	s.AlertTriggered = true
	return true, nil
}

// DeleteClosedBefore は指定時刻より前に退館したセッションを一括削除し、件数を返す。
func (r *MemorySessionRepo) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, s := range r.sessions {
		if !s.Active() && s.CheckOutAt.Before(cutoff) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
