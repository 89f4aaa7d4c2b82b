package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/seatman/internal/model"
)

// MemorySettingsRepo はインメモリの運用ポリシー設定リポジトリ。
// オフライン/デモモードで使用し、デフォルト設定で初期化される。
type MemorySettingsRepo struct {
	mu       sync.RWMutex
	settings *model.AppSettings
}

// NewMemorySettingsRepo はデフォルト設定で初期化したMemorySettingsRepoを生成する。
func NewMemorySettingsRepo() *MemorySettingsRepo {
	return &MemorySettingsRepo{
		settings: model.DefaultAppSettings(),
	}
}

// Get は現在の設定を返す。
func (r *MemorySettingsRepo) Get(ctx context.Context) (*model.AppSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := *r.settings
	return &c, nil
}

// Update は設定を更新する。
func (r *MemorySettingsRepo) Update(ctx context.Context, settings *model.AppSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *settings
	c.UpdatedAt = time.Now()
	r.settings = &c
	return nil
}

// compile-time interface check
var _ SettingsRepository = (*MemorySettingsRepo)(nil)
