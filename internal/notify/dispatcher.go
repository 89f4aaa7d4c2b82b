// Package notify は長時間滞在アラートの配信を提供する。
// 配信はベストエフォートであり、失敗してもモニターのティック処理を中断させない。
package notify

import (
	"context"

	"github.com/hitoshi/seatman/internal/model"
)

// Dispatcher は長時間滞在アラートの配信インターフェース。
// テスト時にモックに差し替え可能。
type Dispatcher interface {
	// Dispatch は指定利用者の長時間滞在アラートを配信する。
	// elapsedMinは滞在時間（分、切り捨て）、recipientは通知先アドレス。
	Dispatch(ctx context.Context, patron *model.Patron, elapsedMin int, recipient string) error
}
