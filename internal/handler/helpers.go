package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/seatman/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// sessionResponse は来館セッションのAPIレスポンス。
type sessionResponse struct {
	ID             string  `json:"id"`
	PatronID       string  `json:"patron_id"`
	CheckInAt      string  `json:"check_in_at"`
	CheckOutAt     *string `json:"check_out_at"`
	DurationMin    *int    `json:"duration_min"`
	Notes          string  `json:"notes,omitempty"`
	AlertTriggered bool    `json:"alert_triggered"`
}

// patronResponse は利用者のAPIレスポンス。
type patronResponse struct {
	ID         string  `json:"id"`
	Category   string  `json:"category"`
	Name       string  `json:"name"`
	Email      string  `json:"email,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Level      string  `json:"level,omitempty"`
	Program    string  `json:"program,omitempty"`
	Department string  `json:"department,omitempty"`
	NationalID string  `json:"national_id,omitempty"`
	PhotoURL   string  `json:"photo_url,omitempty"`
	TotalHours float64 `json:"total_hours"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// toSessionResponse はmodel.SessionからAPIレスポンスに変換する。
func toSessionResponse(s *model.Session) sessionResponse {
	resp := sessionResponse{
		ID:             s.ID,
		PatronID:       s.PatronID,
		CheckInAt:      s.CheckInAt.Format(time.RFC3339),
		Notes:          s.Notes,
		AlertTriggered: s.AlertTriggered,
	}
	if s.CheckOutAt != nil {
		out := s.CheckOutAt.Format(time.RFC3339)
		resp.CheckOutAt = &out
	}
	if s.DurationMin != nil {
		d := *s.DurationMin
		resp.DurationMin = &d
	}
	return resp
}

// toSessionResponses はセッションのスライスをAPIレスポンスに変換する。
// nilスライスでも空配列としてシリアライズされるよう必ず非nilを返す。
func toSessionResponses(sessions []*model.Session) []sessionResponse {
	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, toSessionResponse(s))
	}
	return resp
}

// toPatronResponse はmodel.PatronからAPIレスポンスに変換する。
func toPatronResponse(p *model.Patron) patronResponse {
	return patronResponse{
		ID:         p.ID,
		Category:   string(p.Category),
		Name:       p.Name,
		Email:      p.Email,
		Phone:      p.Phone,
		Level:      p.Level,
		Program:    p.Program,
		Department: p.Department,
		NationalID: p.NationalID,
		PhotoURL:   p.PhotoURL,
		TotalHours: p.TotalHours,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  p.UpdatedAt.Format(time.RFC3339),
	}
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSONResponse(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestError はリクエストボディ解析失敗の統一レスポンスを書き込む。
func writeInvalidRequestError(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodePatronNotFound, model.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidCategory,
		model.ErrCodeInvalidCapacity,
		model.ErrCodeInvalidThreshold,
		model.ErrCodePatronNameMissing:
		return http.StatusBadRequest
	case model.ErrCodeDuplicatePatron:
		return http.StatusConflict
	case model.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
