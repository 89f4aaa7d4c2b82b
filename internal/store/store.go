// Package store はUI向けのセッションストアを提供する。
// 在館中・直近履歴・本日分のセッション、利用者一覧、運用設定を
// メモリ上の投影として保持し、変更通知フィードに応じて差分更新する。
// 在館状況スナップショットは投影の更新のたびに再導出される。
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/seatman/internal/clock"
	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/occupancy"
	"github.com/hitoshi/seatman/internal/repository"
)

// Status はストアの同期状態を表す。
type Status string

const (
	// StatusOnline は接続モードで同期済みの状態。
	StatusOnline Status = "online"
	// StatusOffline はオフライン/デモモード。インメモリデータのみで動作する。
	StatusOffline Status = "offline"
	// StatusSyncing は全面再同期の実行中。
	StatusSyncing Status = "syncing"
	// StatusError は直近の再同期が失敗した状態。次の再同期で回復を試みる。
	StatusError Status = "error"
)

// ChangeFeed はストレージ側の変更通知フィードのインターフェース。
// 接続モードではPostgreSQLのLISTEN/NOTIFYリスナーが実装する。
type ChangeFeed interface {
	// Start は変更通知の受信を開始し、コンテキストのキャンセルまでブロックする。
	// handlerにはテーブル名と操作種別が渡される。
	// table空文字・op "resync" は全面再同期の要求を意味する。
	Start(ctx context.Context, handler func(table, op string)) error
}

// Recorder はストアのメトリクス記録インターフェース。
type Recorder interface {
	RecordResync(result string)
	SetActiveSessions(count int)
}

// Store はUI向けの読み取り投影を保持するセッションストア。
// 書き込みは各サービス経由で行われ、ストアは変更通知を受けて投影を更新する。
// オフラインモードでは変更通知が存在しないため、書き込み側が明示的に
// Refreshを呼び出して投影を更新する。
type Store struct {
	sessionRepo  repository.SessionRepository
	patronRepo   repository.PatronRepository
	settingsRepo repository.SettingsRepository
	feed         ChangeFeed // オフラインモードではnil
	clk          clock.Clock
	logger       *slog.Logger
	recorder     Recorder
	historyLimit int

	mu        sync.RWMutex
	status    Status
	lastError string
	active    []*model.Session
	recent    []*model.Session
	today     []*model.Session
	patrons   []*model.Patron
	settings  *model.AppSettings
	occupancy occupancy.Snapshot
	listeners []func()
}

// NewStore はStoreの新しいインスタンスを生成する。
// feedがnilの場合はオフラインモードとして動作する。
// recorderはnilを許容する（メトリクス未使用時）。
func NewStore(
	sessionRepo repository.SessionRepository,
	patronRepo repository.PatronRepository,
	settingsRepo repository.SettingsRepository,
	feed ChangeFeed,
	clk clock.Clock,
	logger *slog.Logger,
	recorder Recorder,
	historyLimit int,
) *Store {
	status := StatusSyncing
	if feed == nil {
		status = StatusOffline
	}
	return &Store{
		sessionRepo:  sessionRepo,
		patronRepo:   patronRepo,
		settingsRepo: settingsRepo,
		feed:         feed,
		clk:          clk,
		logger:       logger,
		recorder:     recorder,
		historyLimit: historyLimit,
		status:       status,
		settings:     model.DefaultAppSettings(),
	}
}

// Start は初回の全面同期を行い、接続モードでは変更通知の受信を開始する。
// 接続モードではコンテキストのキャンセルまでブロックする。
// オフラインモードでは初回同期のみ行い即座に返る。
func (s *Store) Start(ctx context.Context) error {
	if err := s.Resync(ctx); err != nil {
		s.logger.Error("ストアの初回同期に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	if s.feed == nil {
		return nil
	}

	return s.feed.Start(ctx, s.onChange)
}

// Resync は全投影をストレージから再読み込みする。
// 失敗した場合は状態をerrorに遷移させ、既存の投影を保持する。
func (s *Store) Resync(ctx context.Context) error {
	s.setStatusIfOnline(StatusSyncing)

	active, err := s.sessionRepo.ListActive(ctx)
	if err != nil {
		return s.failResync(fmt.Errorf("入館中セッションの取得に失敗しました: %w", err))
	}
	recent, err := s.sessionRepo.ListClosedRecent(ctx, s.historyLimit)
	if err != nil {
		return s.failResync(fmt.Errorf("直近履歴の取得に失敗しました: %w", err))
	}
	today, err := s.sessionRepo.ListSince(ctx, s.startOfToday())
	if err != nil {
		return s.failResync(fmt.Errorf("本日セッションの取得に失敗しました: %w", err))
	}
	patrons, err := s.patronRepo.List(ctx)
	if err != nil {
		return s.failResync(fmt.Errorf("利用者一覧の取得に失敗しました: %w", err))
	}
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return s.failResync(fmt.Errorf("設定の取得に失敗しました: %w", err))
	}

	s.mu.Lock()
	s.active = active
	s.recent = recent
	s.today = today
	s.patrons = patrons
	s.settings = settings
	s.recompute()
	if s.status != StatusOffline {
		s.status = StatusOnline
	}
	s.lastError = ""
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordResync("success")
	}
	s.notifyListeners()

	s.logger.Info("ストアを再同期しました",
		slog.Int("active", len(active)),
		slog.Int("patrons", len(patrons)),
	)
	return nil
}

// Refresh は投影の差分更新を行う。オフラインモードでは書き込み側が
// 変更後に呼び出す。接続モードでは変更通知経由で内部的に呼ばれる。
func (s *Store) Refresh(ctx context.Context, table string) {
	s.onChangeTable(ctx, table)
}

// onChange は変更通知フィードからのイベントを処理する。
func (s *Store) onChange(table, op string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if table == "" || op == "resync" {
		if err := s.Resync(ctx); err != nil {
			s.logger.Error("変更通知契機の全面再同期に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	s.onChangeTable(ctx, table)
}

// onChangeTable は対象テーブルに応じた投影のみを再読み込みする。
func (s *Store) onChangeTable(ctx context.Context, table string) {
	var err error
	switch table {
	case "sessions":
		err = s.refreshSessions(ctx)
	case "patrons":
		err = s.refreshPatrons(ctx)
	case "app_settings":
		err = s.refreshSettings(ctx)
	default:
		s.logger.Warn("未知のテーブルの変更通知を無視します",
			slog.String("table", table),
		)
		return
	}
	if err != nil {
		s.logger.Error("投影の差分更新に失敗しました",
			slog.String("table", table),
			slog.String("error", err.Error()),
		)
		s.setError(err)
		return
	}
	s.notifyListeners()
}

func (s *Store) refreshSessions(ctx context.Context) error {
	active, err := s.sessionRepo.ListActive(ctx)
	if err != nil {
		return err
	}
	recent, err := s.sessionRepo.ListClosedRecent(ctx, s.historyLimit)
	if err != nil {
		return err
	}
	today, err := s.sessionRepo.ListSince(ctx, s.startOfToday())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.active = active
	s.recent = recent
	s.today = today
	s.recompute()
	s.recoverFromError()
	s.mu.Unlock()
	return nil
}

func (s *Store) refreshPatrons(ctx context.Context) error {
	patrons, err := s.patronRepo.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.patrons = patrons
	s.recompute()
	s.recoverFromError()
	s.mu.Unlock()
	return nil
}

func (s *Store) refreshSettings(ctx context.Context) error {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	s.recompute()
	s.recoverFromError()
	s.mu.Unlock()
	return nil
}

// recompute は在館状況スナップショットを再導出する。呼び出し元がmuを保持していること。
func (s *Store) recompute() {
	categoryByPatron := make(map[string]model.PatronCategory, len(s.patrons))
	for _, p := range s.patrons {
		categoryByPatron[p.ID] = p.Category
	}
	s.occupancy = occupancy.Compute(s.active, categoryByPatron, s.settings.DailyCapacity)
	if s.recorder != nil {
		s.recorder.SetActiveSessions(s.occupancy.ActiveTotal)
	}
}

// Subscribe は投影更新時に呼び出されるコールバックを登録する。
// コールバックはストアのロック外で呼ばれるため、ストアのゲッターを安全に利用できる。
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notifyListeners() {
	s.mu.RLock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

// Status は現在の同期状態を返す。
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastError は直近の同期エラーメッセージを返す。エラーがなければ空文字列。
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ActiveSessions は入館中セッションの投影を返す。
func (s *Store) ActiveSessions() []*model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Session(nil), s.active...)
}

// RecentSessions は直近の退館済みセッションの投影を返す。
func (s *Store) RecentSessions() []*model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Session(nil), s.recent...)
}

// TodaySessions は本日入館したセッションの投影を返す。
func (s *Store) TodaySessions() []*model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Session(nil), s.today...)
}

// Patrons は利用者一覧の投影を返す。
func (s *Store) Patrons() []*model.Patron {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Patron(nil), s.patrons...)
}

// Settings は運用設定の投影を返す。
func (s *Store) Settings() *model.AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := *s.settings
	return &copied
}

// Occupancy は在館状況スナップショットを返す。
func (s *Store) Occupancy() occupancy.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.occupancy
	snap.ActiveByCategory = make(map[model.PatronCategory]int, len(s.occupancy.ActiveByCategory))
	for k, v := range s.occupancy.ActiveByCategory {
		snap.ActiveByCategory[k] = v
	}
	return snap
}

// startOfToday は現地時刻での本日0時を返す。
func (s *Store) startOfToday() time.Time {
	now := s.clk.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (s *Store) failResync(err error) error {
	s.setError(err)
	if s.recorder != nil {
		s.recorder.RecordResync("error")
	}
	return err
}

// setError は状態をerrorへ遷移させ、エラーメッセージを保持する。
// オフラインモードでは状態は遷移しないが、メッセージは保持する。
func (s *Store) setError(err error) {
	s.mu.Lock()
	if s.status != StatusOffline {
		s.status = StatusError
	}
	s.lastError = err.Error()
	s.mu.Unlock()
}

// recoverFromError は差分更新の成功によるerror状態からの回復を行う。
// 呼び出し元がmuを保持していること。
func (s *Store) recoverFromError() {
	if s.status == StatusError {
		s.status = StatusOnline
	}
	s.lastError = ""
}

// setStatusIfOnline はオフラインモード以外の場合のみ状態を遷移させる。
func (s *Store) setStatusIfOnline(status Status) {
	s.mu.Lock()
	if s.status != StatusOffline {
		s.status = status
	}
	s.mu.Unlock()
}
