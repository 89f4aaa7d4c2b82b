// Package occupancy は在館者数と座席残数の純粋な導出計算を提供する。
// セッションストアの状態からその都度計算され、独自の保存状態を持たない。
package occupancy

import "github.com/hitoshi/seatman/internal/model"

// Snapshot はある時点の在館状況を表す。
type Snapshot struct {
	// ActiveTotal は入館中セッションの総数。
	ActiveTotal int
	// ActiveByCategory は利用者区分別の入館中セッション数。全区分のキーを常に含む。
	ActiveByCategory map[model.PatronCategory]int
	// RemainingSeats は座席残数。max(0, 座席数上限 - ActiveTotal)。
	RemainingSeats int
	// OccupancyPercent は座席使用率（%）。100を上限とする。
	OccupancyPercent int
}

// Compute は入館中セッションと利用者区分の対応から在館状況を導出する。
// categoryByPatronに存在しない利用者のセッションは総数にのみ計上される。
// capacityが0以下の場合、使用率は入館者がいれば100、いなければ0とする。
func Compute(active []*model.Session, categoryByPatron map[string]model.PatronCategory, capacity int) Snapshot {
	snap := Snapshot{
		ActiveByCategory: make(map[model.PatronCategory]int, len(model.AllPatronCategories)),
	}
	for _, c := range model.AllPatronCategories {
		snap.ActiveByCategory[c] = 0
	}

	for _, s := range active {
		if !s.Active() {
			continue
		}
		snap.ActiveTotal++
		if c, ok := categoryByPatron[s.PatronID]; ok {
			snap.ActiveByCategory[c]++
		}
	}

	if capacity > 0 {
		snap.RemainingSeats = capacity - snap.ActiveTotal
		if snap.RemainingSeats < 0 {
			snap.RemainingSeats = 0
		}
		snap.OccupancyPercent = snap.ActiveTotal * 100 / capacity
		if snap.OccupancyPercent > 100 {
			snap.OccupancyPercent = 100
		}
	} else if snap.ActiveTotal > 0 {
		snap.OccupancyPercent = 100
	}

	return snap
}
