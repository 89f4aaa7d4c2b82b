// Package model はドメインモデルを定義する。
package model

import "time"

// AppSettings は運用ポリシー設定を表す。
// 設定管理画面から変更され、モニターには次のティックから反映される。
// コアは読み取り専用の設定として扱い、永続化の所有権は持たない。
type AppSettings struct {
	// DailyCapacity は1日あたりの座席数上限。
	DailyCapacity int
	// AutoCheckoutEnabled は自動退館ポリシーの有効フラグ。
	AutoCheckoutEnabled bool
	// AutoCheckoutHours は自動退館までの滞在時間（時間単位）。
	AutoCheckoutHours int
	// NotificationsEnabled は長時間滞在アラートの有効フラグ。
	NotificationsEnabled bool
	// AlertThresholdMin はアラート発報までの滞在時間しきい値（分単位）。
	AlertThresholdMin int
	// NotifyRecipient はアラートの通知先アドレス。
	NotifyRecipient string
	UpdatedAt       time.Time
}

// DefaultAppSettings はデフォルトのポリシー設定を返す。
// 自動退館・アラートはいずれも無効で開始する。
func DefaultAppSettings() *AppSettings {
	return &AppSettings{
		DailyCapacity:        100,
		AutoCheckoutEnabled:  false,
		AutoCheckoutHours:    12,
		NotificationsEnabled: false,
		AlertThresholdMin:    180,
		NotifyRecipient:      "",
	}
}
