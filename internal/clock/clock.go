// Package clock は現在時刻の供給を抽象化する。
// モニターやライフサイクルサービスに注入することで、
// 実時間の待機なしに経過時間をシミュレートするテストを可能にする。
package clock

import "time"

// Clock は現在時刻の供給インターフェース。
type Clock interface {
	// Now は現在時刻を返す。
	Now() time.Time
}

// systemClock はtime.Nowをそのまま返すClock実装。
type systemClock struct{}

// System はシステム時計を使用するClockを返す。
func System() Clock {
	return systemClock{}
}

// Now は現在時刻を返す。
func (systemClock) Now() time.Time {
	return time.Now()
}
