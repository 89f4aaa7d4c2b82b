package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/patron"
)

// PatronServiceInterface は利用者ハンドラーが必要とするサービスインターフェース。
type PatronServiceInterface interface {
	Create(ctx context.Context, input patron.Input) (*model.Patron, error)
	Update(ctx context.Context, id string, input patron.Input) (*model.Patron, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Patron, error)
	List(ctx context.Context) ([]*model.Patron, error)
}

// Refresher は書き込み後の投影更新インターフェース。
type Refresher interface {
	Refresh(ctx context.Context, table string)
}

// PatronHandler は利用者台帳のHTTPハンドラー。
type PatronHandler struct {
	service   PatronServiceInterface
	refresher Refresher
}

// NewPatronHandler はPatronHandlerを生成する。
func NewPatronHandler(service PatronServiceInterface, refresher Refresher) *PatronHandler {
	return &PatronHandler{
		service:   service,
		refresher: refresher,
	}
}

// patronRequest は利用者の作成・更新リクエストのボディ。
type patronRequest struct {
	Category   string `json:"category"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Level      string `json:"level"`
	Program    string `json:"program"`
	Department string `json:"department"`
	NationalID string `json:"national_id"`
	PhotoURL   string `json:"photo_url"`
}

func (req patronRequest) toInput() patron.Input {
	return patron.Input{
		Category:   req.Category,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Level:      req.Level,
		Program:    req.Program,
		Department: req.Department,
		NationalID: req.NationalID,
		PhotoURL:   req.PhotoURL,
	}
}

// Create は利用者登録を処理する。
// POST /api/patrons
func (h *PatronHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req patronRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	p, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.refresher.Refresh(r.Context(), "patrons")
	writeJSONResponse(w, http.StatusCreated, toPatronResponse(p))
}

// Update は利用者情報の更新を処理する。
// PUT /api/patrons/{id}
func (h *PatronHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req patronRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	p, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.refresher.Refresh(r.Context(), "patrons")
	writeJSONResponse(w, http.StatusOK, toPatronResponse(p))
}

// Delete は利用者の削除を処理する。
// DELETE /api/patrons/{id}
func (h *PatronHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	// 利用者削除はCASCADEでセッションにも波及する
	h.refresher.Refresh(r.Context(), "patrons")
	h.refresher.Refresh(r.Context(), "sessions")
	w.WriteHeader(http.StatusNoContent)
}

// Get は利用者詳細を返す。
// GET /api/patrons/{id}
func (h *PatronHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPatronResponse(p))
}

// List は利用者一覧を返す。
// GET /api/patrons
func (h *PatronHandler) List(w http.ResponseWriter, r *http.Request) {
	patrons, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]patronResponse, 0, len(patrons))
	for _, p := range patrons {
		resp = append(resp, toPatronResponse(p))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
