// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, patron, session, settings, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePatronNotFound    = "PATRON_NOT_FOUND"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeInvalidCategory   = "INVALID_CATEGORY"
	ErrCodeInvalidCapacity   = "INVALID_CAPACITY"
	ErrCodeInvalidThreshold  = "INVALID_THRESHOLD"
	ErrCodeDuplicatePatron   = "DUPLICATE_PATRON"
	ErrCodePatronNameMissing = "PATRON_NAME_MISSING"
	ErrCodeStoreUnavailable  = "STORE_UNAVAILABLE"
)

// NewPatronNotFoundError は利用者未検出エラーを生成する。
func NewPatronNotFoundError(patronID string) *APIError {
	return &APIError{
		Code:     ErrCodePatronNotFound,
		Message:  fmt.Sprintf("指定された利用者が見つかりません: %s", patronID),
		Category: "patron",
		Action:   "利用者IDを確認してください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", sessionID),
		Category: "session",
		Action:   "セッションIDを確認してください。",
	}
}

// NewInvalidCategoryError は無効な利用者区分エラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効な利用者区分です: %s", category),
		Category: "validation",
		Action:   "区分には student、academic_staff、non_academic_staff、visitor のいずれかを指定してください。",
	}
}

// NewInvalidCapacityError は無効な座席数エラーを生成する。
func NewInvalidCapacityError(capacity int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCapacity,
		Message:  fmt.Sprintf("無効な座席数です: %d", capacity),
		Category: "validation",
		Action:   "座席数には1以上の整数を指定してください。",
	}
}

// NewInvalidThresholdError は無効なアラートしきい値エラーを生成する。
func NewInvalidThresholdError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidThreshold,
		Message:  fmt.Sprintf("無効なアラートしきい値です: %d分", minutes),
		Category: "validation",
		Action:   "しきい値には1分以上の整数を指定してください。",
	}
}

// NewPatronNameMissingError は利用者名未入力エラーを生成する。
func NewPatronNameMissingError() *APIError {
	return &APIError{
		Code:     ErrCodePatronNameMissing,
		Message:  "利用者名が入力されていません。",
		Category: "validation",
		Action:   "利用者名を入力してください。",
	}
}

// NewStoreUnavailableError はストア接続エラーを生成する。
func NewStoreUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  fmt.Sprintf("データストアへの接続に失敗しました: %s", reason),
		Category: "system",
		Action:   "接続状態を確認し、再同期を実行してください。",
	}
}
