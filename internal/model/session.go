// Package model はドメインモデルを定義する。
package model

import "time"

const (
	// NotesAutoCheckout は自動退館時にシステムが設定する備考。
	NotesAutoCheckout = "Auto-Checkout: System Time Limit Reached"
	// NotesManualCheckout は備考未指定の手動退館時に設定する備考。
	NotesManualCheckout = "Manual Checkout"
)

// Session は1回の入退館（来館セッション）を表す。
// CheckOutAtが未設定のセッションが「入館中」であり、
// 退館処理で滞在時間が確定した後は不変の履歴として扱う。
type Session struct {
	ID        string
	PatronID  string
	CheckInAt time.Time
	// CheckOutAt は退館時刻。入館中はnil。
	CheckOutAt *time.Time
	// DurationMin は滞在時間（分）。退館時に確定し、最小値は1分。入館中はnil。
	DurationMin *int
	Notes       string
	// AlertTriggered は長時間滞在アラートの送信済みフラグ。
	// false→trueへの遷移はセッションごとに高々1回で、戻ることはない。
	AlertTriggered bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Active はセッションが入館中（退館時刻未設定）であるかを返す。
func (s *Session) Active() bool {
	return s.CheckOutAt == nil
}

// ComputeDurationMin は入退館時刻から滞在時間（分）を算出する。
// 四捨五入で分に丸め、時計ずれ等で0以下になる場合は1分に切り上げる。
func ComputeDurationMin(checkIn, checkOut time.Time) int {
	min := int(checkOut.Sub(checkIn).Round(time.Minute) / time.Minute)
	if min < 1 {
		return 1
	}
	return min
}
