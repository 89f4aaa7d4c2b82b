package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/store"
)

// StatusReader はストアの同期状態の読み取りと再同期のインターフェース。
type StatusReader interface {
	Status() store.Status
	LastError() string
	Resync(ctx context.Context) error
}

// StatusHandler は接続状態のHTTPハンドラー。
type StatusHandler struct {
	store StatusReader
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(store StatusReader) *StatusHandler {
	return &StatusHandler{store: store}
}

// statusResponse は接続状態のAPIレスポンス。
type statusResponse struct {
	Status    string `json:"status"`
	Mode      string `json:"mode"`
	LastError string `json:"last_error,omitempty"`
}

// Get は現在の接続状態を返す。
// GET /api/status
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := h.store.Status()
	mode := "connected"
	if status == store.StatusOffline {
		mode = "offline"
	}
	writeJSONResponse(w, http.StatusOK, statusResponse{
		Status:    string(status),
		Mode:      mode,
		LastError: h.store.LastError(),
	})
}

// Resync は全面再同期を実行する。
// POST /api/resync
func (h *StatusHandler) Resync(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Resync(r.Context()); err != nil {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError(err.Error()))
		return
	}
	h.Get(w, r)
}

// Health はヘルスチェックエンドポイント。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
