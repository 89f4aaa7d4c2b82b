package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// channelName はpg_notifyの配信チャネル名。マイグレーションのトリガー定義と一致させる。
const channelName = "seatman_events"

// pingInterval は無通知が続いた場合の死活確認間隔。
const pingInterval = 90 * time.Second

// Listener はPostgreSQLのLISTEN/NOTIFYを使用した変更通知フィード。
// patrons / sessions / app_settings への挿入・更新・削除を
// 接続中の全クライアントへプッシュ配信する。
type Listener struct {
	pql    *pq.Listener
	logger *slog.Logger
}

// NewListener はListenerの新しいインスタンスを生成する。
// 接続断時はpq.Listenerが指数バックオフで自動再接続する。
func NewListener(databaseURL string, logger *slog.Logger) *Listener {
	pql := pq.NewListener(databaseURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Error("変更通知リスナーで接続イベントが発生しました",
					slog.Int("event_type", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		})
	return &Listener{pql: pql, logger: logger}
}

// Start はLISTENを開始し、受信した通知をhandlerへ配送する。
// コンテキストがキャンセルされるまでブロックする。
// 再接続が発生した場合は通知の取りこぼしがあり得るため、
// table空文字・op "resync" の合成イベントを配送して全面再同期を促す。
func (l *Listener) Start(ctx context.Context, handler func(table, op string)) error {
	if err := l.pql.Listen(channelName); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", channelName, err)
	}

	l.logger.Info("変更通知リスナーを開始しました",
		slog.String("channel", channelName),
	)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("変更通知リスナーを停止しました")
			return l.pql.Close()

		case n := <-l.pql.Notify:
			// nilは再接続を意味する。再接続中の通知は失われているため全面再同期を促す。
			if n == nil {
				l.logger.Warn("変更通知の接続が再確立されました。全面再同期を要求します")
				handler("", "resync")
				continue
			}

			var payload struct {
				Table string `json:"table"`
				Op    string `json:"op"`
			}
			if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil {
				l.logger.Error("変更通知ペイロードの解析に失敗しました",
					slog.String("payload", n.Extra),
					slog.String("error", err.Error()),
				)
				continue
			}
			handler(payload.Table, payload.Op)

		case <-time.After(pingInterval):
			// 長時間無通知の場合は接続の死活確認を行う
			go func() {
				if err := l.pql.Ping(); err != nil {
					l.logger.Error("変更通知リスナーの死活確認に失敗しました",
						slog.String("error", err.Error()),
					)
				}
			}()
		}
	}
}
