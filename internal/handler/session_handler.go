package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/seatman/internal/model"
)

// LifecycleServiceInterface はセッションハンドラーが必要とするライフサイクルサービスのインターフェース。
type LifecycleServiceInterface interface {
	// CheckIn は入館セッションを開始する。既に入館中の場合は既存セッションを返す。
	CheckIn(ctx context.Context, patronID string) (*model.Session, bool, error)
	// CheckOut は手動退館を実行する。既に退館済みの場合は何もしない。
	CheckOut(ctx context.Context, sessionID, notes string) (*model.Session, bool, error)
}

// PatronFinder は入館時の利用者存在確認のためのインターフェース。
type PatronFinder interface {
	FindByID(ctx context.Context, id string) (*model.Patron, error)
}

// StoreReader はセッション投影の読み取りインターフェース。
type StoreReader interface {
	ActiveSessions() []*model.Session
	RecentSessions() []*model.Session
	TodaySessions() []*model.Session
	// Refresh は書き込み後に投影を更新する。
	// 接続モードでは変更通知でも更新されるが、書き込んだ端末の
	// 読み取り一貫性を保証するため書き込み直後にも呼び出す。
	Refresh(ctx context.Context, table string)
}

// SessionHandler は入退館のHTTPハンドラー。
type SessionHandler struct {
	lifecycle LifecycleServiceInterface
	patrons   PatronFinder
	store     StoreReader
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(lifecycle LifecycleServiceInterface, patrons PatronFinder, store StoreReader) *SessionHandler {
	return &SessionHandler{
		lifecycle: lifecycle,
		patrons:   patrons,
		store:     store,
	}
}

// checkInRequest は入館リクエストのボディ。
type checkInRequest struct {
	PatronID string `json:"patron_id"`
}

// checkOutRequest は退館リクエストのボディ。
type checkOutRequest struct {
	Notes string `json:"notes"`
}

// checkInResponse は入館レスポンス。createdは新規セッションが作成されたかを示す。
type checkInResponse struct {
	Session sessionResponse `json:"session"`
	Created bool            `json:"created"`
}

// checkOutResponse は退館レスポンス。closedはこの要求で退館が成立したかを示す。
type checkOutResponse struct {
	Session *sessionResponse `json:"session"`
	Closed  bool             `json:"closed"`
}

// CheckIn は入館を処理する。
// POST /api/sessions/checkin
func (h *SessionHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}
	if req.PatronID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "利用者IDが指定されていません。",
			Category: "validation",
			Action:   "利用者IDを指定してください。",
		})
		return
	}

	patron, err := h.patrons.FindByID(r.Context(), req.PatronID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if patron == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPatronNotFoundError(req.PatronID))
		return
	}

	sess, created, err := h.lifecycle.CheckIn(r.Context(), req.PatronID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.store.Refresh(r.Context(), "sessions")

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, checkInResponse{
		Session: toSessionResponse(sess),
		Created: created,
	})
}

// CheckOut は手動退館を処理する。
// POST /api/sessions/{id}/checkout
func (h *SessionHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	// 備考は任意のため、ボディなしの退館要求も受け付ける
	var req checkOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeInvalidRequestError(w)
		return
	}

	sess, closed, err := h.lifecycle.CheckOut(r.Context(), sessionID, req.Notes)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if sess == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSessionNotFoundError(sessionID))
		return
	}

	h.store.Refresh(r.Context(), "sessions")

	resp := checkOutResponse{Closed: closed}
	sr := toSessionResponse(sess)
	resp.Session = &sr
	writeJSONResponse(w, http.StatusOK, resp)
}

// ListActive は入館中セッション一覧を返す。
// GET /api/sessions/active
func (h *SessionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, toSessionResponses(h.store.ActiveSessions()))
}

// ListRecent は直近の退館済みセッション一覧を返す。
// GET /api/sessions/recent
func (h *SessionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, toSessionResponses(h.store.RecentSessions()))
}

// ListToday は本日入館したセッション一覧を返す。
// GET /api/sessions/today
func (h *SessionHandler) ListToday(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, toSessionResponses(h.store.TodaySessions()))
}
