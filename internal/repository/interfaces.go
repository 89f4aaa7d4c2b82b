// Package repository はデータ永続化のインターフェースを定義する。
// PostgreSQL実装（接続モード）とインメモリ実装（オフライン/デモモード）があり、
// ライフサイクルサービスやストアは構築時にどちらかを注入される。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/seatman/internal/model"
)

// ErrActiveSessionExists は同一利用者の入館中セッションが既に存在する場合に
// Createが返すエラー。呼び出し元は重複入館として無害に無視してよい。
var ErrActiveSessionExists = errors.New("active session already exists for patron")

// PatronRepository は利用者データの永続化インターフェース。
type PatronRepository interface {
	// FindByID は指定IDの利用者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Patron, error)

	// List は全利用者を作成日時の降順で返す。
	List(ctx context.Context) ([]*model.Patron, error)

	// NextID は指定区分の次の利用者IDを採番する。
	// 形式は「<区分プレフィックス>-<4桁ゼロ埋め連番>」（例: STU-0042）。
	NextID(ctx context.Context, category model.PatronCategory) (string, error)

	// Create は利用者を作成する。
	Create(ctx context.Context, patron *model.Patron) error

	// Update は利用者情報を更新する。
	Update(ctx context.Context, patron *model.Patron) error

	// DeleteByID は指定IDの利用者を削除する。関連セッションはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// AddTotalHours は累積利用時間に指定時間（時間単位）を加算する。
	// 非正規化集計値の結果整合更新であり、失敗しても退館処理自体は成立する。
	AddTotalHours(ctx context.Context, id string, hours float64) error
}

// SessionRepository は来館セッションデータの永続化インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// FindActiveByPatronID は指定利用者の入館中セッションを取得する。
	// 入館中でない場合はnilを返す。
	FindActiveByPatronID(ctx context.Context, patronID string) (*model.Session, error)

	// ListActive は入館中の全セッションを入館時刻の昇順で返す。
	ListActive(ctx context.Context) ([]*model.Session, error)

	// ListClosedRecent は退館済みセッションを退館時刻の降順でlimit件まで返す。
	ListClosedRecent(ctx context.Context, limit int) ([]*model.Session, error)

	// ListSince は指定時刻以降に入館したセッションを入館時刻の降順で返す。
	// 「本日のセッション」投影に使用する。
	ListSince(ctx context.Context, since time.Time) ([]*model.Session, error)

	// Create は新規セッションを作成する。
	// 同一利用者の入館中セッションが既に存在する場合はErrActiveSessionExistsを返す。
	Create(ctx context.Context, session *model.Session) error

	// Close はセッションを退館状態に遷移させる。
	// 入館中の場合のみ退館時刻・滞在時間・備考を設定しtrueを返す。
	// 既に退館済みまたは存在しない場合は何も変更せずfalseを返す（冪等）。
	Close(ctx context.Context, id string, checkOutAt time.Time, durationMin int, notes string) (bool, error)

	// MarkAlertTriggered はアラート送信済みフラグを立てる。
	// 未送信から送信済みに遷移した場合のみtrueを返す（高々1回の保証）。
	MarkAlertTriggered(ctx context.Context, id string) (bool, error)

	// DeleteClosedBefore は指定時刻より前に退館したセッションを一括削除し、件数を返す。
	// データ保持ポリシーのクリーンアップジョブから使用する。
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettingsRepository は運用ポリシー設定の永続化インターフェース。
type SettingsRepository interface {
	// Get は現在の設定を取得する。
	Get(ctx context.Context) (*model.AppSettings, error)

	// Update は設定を更新する。モニターには次のティックから反映される。
	Update(ctx context.Context, settings *model.AppSettings) error
}
