package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/seatman/internal/model"
)

// WebhookClient はWebhookエンドポイントへアラートをPOSTするDispatcher実装。
// エンドポイントは運用側で設定され、SSRF防止のため検証済みURLのみを受け付ける
// （検証とHTTPクライアント生成はsecurityパッケージのSSRFGuardが行う）。
type WebhookClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewWebhookClient はWebhookClientの新しいインスタンスを生成する。
func NewWebhookClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *WebhookClient {
	return &WebhookClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// webhookPayload はWebhookに送信するアラート本文。
type webhookPayload struct {
	PatronID   string `json:"patron_id"`
	PatronName string `json:"patron_name"`
	Category   string `json:"category"`
	ElapsedMin int    `json:"elapsed_min"`
	Recipient  string `json:"recipient"`
	Message    string `json:"message"`
}

// Dispatch はアラートをWebhookへPOSTする。
// 2xx以外のステータスはエラーとして返す（呼び出し元はログのみで継続する）。
func (c *WebhookClient) Dispatch(ctx context.Context, patron *model.Patron, elapsedMin int, recipient string) error {
	payload := webhookPayload{
		PatronID:   patron.ID,
		PatronName: patron.Name,
		Category:   string(patron.Category),
		ElapsedMin: elapsedMin,
		Recipient:  recipient,
		Message: fmt.Sprintf("%s さん（%s）が%d分間在館しています。状況を確認してください。",
			patron.Name, patron.ID, elapsedMin),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("アラート本文のエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Seatman/1.0 Attendance Monitor")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("アラートWebhookの呼び出しに失敗しました",
			slog.String("patron_id", patron.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("アラートWebhookがエラーステータスを返しました",
			slog.String("patron_id", patron.ID),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("アラートWebhookがステータス %d を返しました", resp.StatusCode)
	}

	c.logger.Info("長時間滞在アラートを配信しました",
		slog.String("patron_id", patron.ID),
		slog.Int("elapsed_min", elapsedMin),
		slog.String("recipient", recipient),
	)

	return nil
}

// compile-time interface check
var _ Dispatcher = (*WebhookClient)(nil)
