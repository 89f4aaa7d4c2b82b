package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/seatman/internal/model"
)

// MemoryPatronRepo はインメモリの利用者リポジトリ。
// オフライン/デモモードで使用する。
type MemoryPatronRepo struct {
	mu      sync.RWMutex
	patrons map[string]*model.Patron
}

// NewMemoryPatronRepo はMemoryPatronRepoを生成する。
func NewMemoryPatronRepo() *MemoryPatronRepo {
	return &MemoryPatronRepo{
		patrons: make(map[string]*model.Patron),
	}
}

// copyPatron は利用者のコピーを返す。
func copyPatron(p *model.Patron) *model.Patron {
	c := *p
	return &c
}

// FindByID は指定IDの利用者を取得する。見つからない場合はnilを返す。
func (r *MemoryPatronRepo) FindByID(ctx context.Context, id string) (*model.Patron, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patrons[id]
	if !ok {
		return nil, nil
	}
	return copyPatron(p), nil
}

// List は全利用者を作成日時の降順で返す。
func (r *MemoryPatronRepo) List(ctx context.Context) ([]*model.Patron, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var patrons []*model.Patron
	for _, p := range r.patrons {
		patrons = append(patrons, copyPatron(p))
	}
	sort.Slice(patrons, func(i, j int) bool {
		return patrons[i].CreatedAt.After(patrons[j].CreatedAt)
	})
	return patrons, nil
}

// NextID は指定区分の次の利用者IDを採番する。
func (r *MemoryPatronRepo) NextID(ctx context.Context, category model.PatronCategory) (string, error) {
	prefix := category.IDPrefix()
	if prefix == "" {
		return "", fmt.Errorf("invalid patron category: %s", category)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for id := range r.patrons {
		var n int
		if _, err := fmt.Sscanf(id, prefix+"-%04d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s-%04d", prefix, max+1), nil
}

// Create は利用者を作成する。
func (r *MemoryPatronRepo) Create(ctx context.Context, patron *model.Patron) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.patrons[patron.ID]; exists {
		return fmt.Errorf("patron already exists: %s", patron.ID)
	}

	now := time.Now()
	patron.CreatedAt = now
	patron.UpdatedAt = now
	r.patrons[patron.ID] = copyPatron(patron)
	return nil
}

// Update は利用者情報を更新する。
func (r *MemoryPatronRepo) Update(ctx context.Context, patron *model.Patron) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.patrons[patron.ID]
	if !ok {
		return fmt.Errorf("patron not found: %s", patron.ID)
	}

	c := copyPatron(patron)
	c.TotalHours = existing.TotalHours
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	r.patrons[patron.ID] = c
	return nil
}

// DeleteByID は指定IDの利用者を削除する。
func (r *MemoryPatronRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.patrons, id)
	return nil
}

// AddTotalHours は累積利用時間に指定時間を加算する。
func (r *MemoryPatronRepo) AddTotalHours(ctx context.Context, id string, hours float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patrons[id]
	if !ok {
		return fmt.Errorf("patron not found: %s", id)
	}
	p.TotalHours += hours
	p.UpdatedAt = time.Now()
	return nil
}

// compile-time interface check
var _ PatronRepository = (*MemoryPatronRepo)(nil)
