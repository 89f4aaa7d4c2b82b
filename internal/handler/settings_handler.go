package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/seatman/internal/clock"
	"github.com/hitoshi/seatman/internal/model"
)

// SettingsStoreInterface は設定の永続化インターフェース。
type SettingsStoreInterface interface {
	Get(ctx context.Context) (*model.AppSettings, error)
	Update(ctx context.Context, settings *model.AppSettings) error
}

// SettingsHandler は運用ポリシー設定のHTTPハンドラー。
type SettingsHandler struct {
	settings  SettingsStoreInterface
	refresher Refresher
	clk       clock.Clock
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(settings SettingsStoreInterface, refresher Refresher, clk clock.Clock) *SettingsHandler {
	return &SettingsHandler{
		settings:  settings,
		refresher: refresher,
		clk:       clk,
	}
}

// settingsResponse は設定のAPIレスポンス。
type settingsResponse struct {
	DailyCapacity        int    `json:"daily_capacity"`
	AutoCheckoutEnabled  bool   `json:"auto_checkout_enabled"`
	AutoCheckoutHours    int    `json:"auto_checkout_hours"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	AlertThresholdMin    int    `json:"alert_threshold_min"`
	NotifyRecipient      string `json:"notify_recipient"`
}

// updateSettingsRequest は設定更新リクエストのボディ。
type updateSettingsRequest struct {
	DailyCapacity        int    `json:"daily_capacity"`
	AutoCheckoutEnabled  bool   `json:"auto_checkout_enabled"`
	AutoCheckoutHours    int    `json:"auto_checkout_hours"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	AlertThresholdMin    int    `json:"alert_threshold_min"`
	NotifyRecipient      string `json:"notify_recipient"`
}

func toSettingsResponse(s *model.AppSettings) settingsResponse {
	return settingsResponse{
		DailyCapacity:        s.DailyCapacity,
		AutoCheckoutEnabled:  s.AutoCheckoutEnabled,
		AutoCheckoutHours:    s.AutoCheckoutHours,
		NotificationsEnabled: s.NotificationsEnabled,
		AlertThresholdMin:    s.AlertThresholdMin,
		NotifyRecipient:      s.NotifyRecipient,
	}
}

// Get は現在の設定を返す。
// GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toSettingsResponse(settings))
}

// Update は設定を更新する。モニターには次のティックから反映される。
// PUT /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	if req.DailyCapacity < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCapacityError(req.DailyCapacity))
		return
	}
	if req.AlertThresholdMin < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidThresholdError(req.AlertThresholdMin))
		return
	}
	if req.AutoCheckoutHours < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_AUTO_CHECKOUT_HOURS",
			Message:  "無効な自動退館時間です。",
			Category: "validation",
			Action:   "自動退館時間には1時間以上の整数を指定してください。",
		})
		return
	}

	settings := &model.AppSettings{
		DailyCapacity:        req.DailyCapacity,
		AutoCheckoutEnabled:  req.AutoCheckoutEnabled,
		AutoCheckoutHours:    req.AutoCheckoutHours,
		NotificationsEnabled: req.NotificationsEnabled,
		AlertThresholdMin:    req.AlertThresholdMin,
		NotifyRecipient:      req.NotifyRecipient,
		UpdatedAt:            h.clk.Now(),
	}

	if err := h.settings.Update(r.Context(), settings); err != nil {
		handleServiceError(w, err)
		return
	}

	h.refresher.Refresh(r.Context(), "app_settings")
	writeJSONResponse(w, http.StatusOK, toSettingsResponse(settings))
}
