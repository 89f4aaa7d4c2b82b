package notify

import (
	"context"
	"log/slog"

	"github.com/hitoshi/seatman/internal/model"
)

// LogDispatcher はアラートをログ出力のみで記録するDispatcher実装。
// Webhook未設定時およびオフライン/デモモードで使用する。
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher はLogDispatcherの新しいインスタンスを生成する。
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Dispatch はアラート内容をログに記録する。常に成功する。
func (d *LogDispatcher) Dispatch(ctx context.Context, patron *model.Patron, elapsedMin int, recipient string) error {
	d.logger.Info("長時間滞在アラート（ログのみ）",
		slog.String("patron_id", patron.ID),
		slog.String("patron_name", patron.Name),
		slog.Int("elapsed_min", elapsedMin),
		slog.String("recipient", recipient),
	)
	return nil
}

// compile-time interface check
var _ Dispatcher = (*LogDispatcher)(nil)
