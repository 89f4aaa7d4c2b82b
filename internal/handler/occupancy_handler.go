package handler

import (
	"net/http"

	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/occupancy"
)

// OccupancyReader は在館状況の読み取りインターフェース。
type OccupancyReader interface {
	Occupancy() occupancy.Snapshot
	Settings() *model.AppSettings
}

// OccupancyHandler は在館状況のHTTPハンドラー。
type OccupancyHandler struct {
	store OccupancyReader
}

// NewOccupancyHandler はOccupancyHandlerを生成する。
func NewOccupancyHandler(store OccupancyReader) *OccupancyHandler {
	return &OccupancyHandler{store: store}
}

// occupancyResponse は在館状況のAPIレスポンス。
type occupancyResponse struct {
	ActiveTotal      int            `json:"active_total"`
	ActiveByCategory map[string]int `json:"active_by_category"`
	Capacity         int            `json:"capacity"`
	RemainingSeats   int            `json:"remaining_seats"`
	OccupancyPercent int            `json:"occupancy_percent"`
}

// Get は現在の在館状況を返す。
// GET /api/occupancy
func (h *OccupancyHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Occupancy()
	settings := h.store.Settings()

	byCategory := make(map[string]int, len(snap.ActiveByCategory))
	for c, n := range snap.ActiveByCategory {
		byCategory[string(c)] = n
	}

	writeJSONResponse(w, http.StatusOK, occupancyResponse{
		ActiveTotal:      snap.ActiveTotal,
		ActiveByCategory: byCategory,
		Capacity:         settings.DailyCapacity,
		RemainingSeats:   snap.RemainingSeats,
		OccupancyPercent: snap.OccupancyPercent,
	})
}
