package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/seatman/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用した運用ポリシー設定リポジトリ。
// app_settingsはシングルトンテーブル（常にid=1の1行）として扱う。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// Get は現在の設定を取得する。
// マイグレーションで初期行が挿入されるため、行が存在しない場合はエラーとなる。
func (r *PostgresSettingsRepo) Get(ctx context.Context) (*model.AppSettings, error) {
	s := &model.AppSettings{}
	err := r.db.QueryRowContext(ctx,
		`SELECT daily_capacity, auto_checkout_enabled, auto_checkout_hours,
		        notifications_enabled, alert_threshold_min, notify_recipient, updated_at
		 FROM app_settings WHERE id = 1`,
	).Scan(
		&s.DailyCapacity, &s.AutoCheckoutEnabled, &s.AutoCheckoutHours,
		&s.NotificationsEnabled, &s.AlertThresholdMin, &s.NotifyRecipient, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("app_settings row is missing: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	return s, nil
}

// Update は設定を更新する。
func (r *PostgresSettingsRepo) Update(ctx context.Context, settings *model.AppSettings) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE app_settings
		 SET daily_capacity = $1, auto_checkout_enabled = $2, auto_checkout_hours = $3,
		     notifications_enabled = $4, alert_threshold_min = $5, notify_recipient = $6,
		     updated_at = now()
		 WHERE id = 1`,
		settings.DailyCapacity, settings.AutoCheckoutEnabled, settings.AutoCheckoutHours,
		settings.NotificationsEnabled, settings.AlertThresholdMin, settings.NotifyRecipient,
	)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
