package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/repository"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// stubFeed は登録されたイベントをhandlerへ配送して終了するChangeFeedスタブ。
type stubFeed struct {
	events [][2]string
}

func (f *stubFeed) Start(ctx context.Context, handler func(table, op string)) error {
	for _, ev := range f.events {
		handler(ev[0], ev[1])
	}
	return nil
}

// errSessionRepo はListActiveが常に失敗するセッションリポジトリ。
type errSessionRepo struct {
	repository.SessionRepository
}

func (r *errSessionRepo) ListActive(ctx context.Context) ([]*model.Session, error) {
	return nil, errors.New("connection refused")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fixture struct {
	store        *Store
	sessionRepo  *repository.MemorySessionRepo
	patronRepo   *repository.MemoryPatronRepo
	settingsRepo *repository.MemorySettingsRepo
	clk          *fakeClock
}

func newFixture(t *testing.T, feed ChangeFeed) *fixture {
	t.Helper()
	sessionRepo := repository.NewMemorySessionRepo()
	patronRepo := repository.NewMemoryPatronRepo()
	settingsRepo := repository.NewMemorySettingsRepo()
	clk := &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}

	return &fixture{
		store: NewStore(
			sessionRepo, patronRepo, settingsRepo,
			feed, clk, discardLogger(), nil, 50,
		),
		sessionRepo:  sessionRepo,
		patronRepo:   patronRepo,
		settingsRepo: settingsRepo,
		clk:          clk,
	}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := f.patronRepo.Create(ctx, &model.Patron{
		ID:       "STU-0001",
		Category: model.PatronCategoryStudent,
		Name:     "テスト利用者",
	}); err != nil {
		t.Fatalf("利用者の作成に失敗: %v", err)
	}
	if err := f.sessionRepo.Create(ctx, &model.Session{
		ID:        "s1",
		PatronID:  "STU-0001",
		CheckInAt: f.clk.now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("セッションの作成に失敗: %v", err)
	}
}

func TestOfflineStoreStatus(t *testing.T) {
	f := newFixture(t, nil)

	if f.store.Status() != StatusOffline {
		t.Errorf("Status = %q, want %q", f.store.Status(), StatusOffline)
	}

	if err := f.store.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// オフラインモードでは同期後もofflineのまま
	if f.store.Status() != StatusOffline {
		t.Errorf("同期後のStatus = %q, want %q", f.store.Status(), StatusOffline)
	}
}

func TestResyncPopulatesProjections(t *testing.T) {
	f := newFixture(t, &stubFeed{})
	f.seed(t)

	if f.store.Status() != StatusSyncing {
		t.Errorf("初期Status = %q, want %q", f.store.Status(), StatusSyncing)
	}

	if err := f.store.Resync(context.Background()); err != nil {
		t.Fatalf("Resync failed: %v", err)
	}

	if f.store.Status() != StatusOnline {
		t.Errorf("再同期後のStatus = %q, want %q", f.store.Status(), StatusOnline)
	}
	if f.store.LastError() != "" {
		t.Errorf("同期成功後のLastError = %q, want 空", f.store.LastError())
	}
	if got := len(f.store.ActiveSessions()); got != 1 {
		t.Errorf("入館中セッション数 = %d, want 1", got)
	}
	if got := len(f.store.Patrons()); got != 1 {
		t.Errorf("利用者数 = %d, want 1", got)
	}

	snap := f.store.Occupancy()
	if snap.ActiveTotal != 1 {
		t.Errorf("在館者数 = %d, want 1", snap.ActiveTotal)
	}
	if snap.ActiveByCategory[model.PatronCategoryStudent] != 1 {
		t.Errorf("学生の在館数 = %d, want 1", snap.ActiveByCategory[model.PatronCategoryStudent])
	}
	// デフォルト設定の座席数は100
	if snap.RemainingSeats != 99 {
		t.Errorf("RemainingSeats = %d, want 99", snap.RemainingSeats)
	}
}

func TestResyncFailureSetsErrorStatus(t *testing.T) {
	sessionRepo := &errSessionRepo{}
	patronRepo := repository.NewMemoryPatronRepo()
	settingsRepo := repository.NewMemorySettingsRepo()
	clk := &fakeClock{now: time.Now()}

	st := NewStore(sessionRepo, patronRepo, settingsRepo, &stubFeed{}, clk, discardLogger(), nil, 50)

	if err := st.Resync(context.Background()); err == nil {
		t.Fatal("ストレージ障害時のResyncはエラーを返すべき")
	}
	if st.Status() != StatusError {
		t.Errorf("Status = %q, want %q", st.Status(), StatusError)
	}
	if st.LastError() == "" {
		t.Error("エラー状態ではLastErrorにメッセージを保持すべき")
	}
}

func TestRefreshTargetsProjection(t *testing.T) {
	f := newFixture(t, &stubFeed{})
	ctx := context.Background()

	if err := f.store.Resync(ctx); err != nil {
		t.Fatalf("Resync failed: %v", err)
	}
	if got := len(f.store.ActiveSessions()); got != 0 {
		t.Fatalf("初期の入館中セッション数 = %d, want 0", got)
	}

	// ストア経由しない書き込みの後、対象テーブルのRefreshで投影へ反映される
	if err := f.sessionRepo.Create(ctx, &model.Session{
		ID:        "s1",
		PatronID:  "STU-0001",
		CheckInAt: f.clk.now,
	}); err != nil {
		t.Fatalf("セッションの作成に失敗: %v", err)
	}

	f.store.Refresh(ctx, "sessions")

	if got := len(f.store.ActiveSessions()); got != 1 {
		t.Errorf("Refresh後の入館中セッション数 = %d, want 1", got)
	}
}

func TestRefreshSettingsRecomputesOccupancy(t *testing.T) {
	f := newFixture(t, &stubFeed{})
	f.seed(t)
	ctx := context.Background()

	if err := f.store.Resync(ctx); err != nil {
		t.Fatalf("Resync failed: %v", err)
	}

	settings, _ := f.settingsRepo.Get(ctx)
	settings.DailyCapacity = 10
	if err := f.settingsRepo.Update(ctx, settings); err != nil {
		t.Fatalf("設定の更新に失敗: %v", err)
	}

	f.store.Refresh(ctx, "app_settings")

	snap := f.store.Occupancy()
	if snap.RemainingSeats != 9 {
		t.Errorf("設定変更後のRemainingSeats = %d, want 9", snap.RemainingSeats)
	}
	if snap.OccupancyPercent != 10 {
		t.Errorf("設定変更後のOccupancyPercent = %d, want 10", snap.OccupancyPercent)
	}
}

func TestChangeFeedResyncEvent(t *testing.T) {
	// 再接続を示す合成イベントで全面再同期が走る
	f := newFixture(t, &stubFeed{events: [][2]string{{"", "resync"}}})
	f.seed(t)

	if err := f.store.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if f.store.Status() != StatusOnline {
		t.Errorf("Status = %q, want %q", f.store.Status(), StatusOnline)
	}
	if got := len(f.store.ActiveSessions()); got != 1 {
		t.Errorf("入館中セッション数 = %d, want 1", got)
	}
}

func TestSubscribeNotifiedOnUpdate(t *testing.T) {
	f := newFixture(t, &stubFeed{})

	var notified int
	f.store.Subscribe(func() { notified++ })

	if err := f.store.Resync(context.Background()); err != nil {
		t.Fatalf("Resync failed: %v", err)
	}
	if notified != 1 {
		t.Errorf("再同期後の通知回数 = %d, want 1", notified)
	}

	f.store.Refresh(context.Background(), "sessions")
	if notified != 2 {
		t.Errorf("差分更新後の通知回数 = %d, want 2", notified)
	}
}

func TestTodaySessionsBoundary(t *testing.T) {
	f := newFixture(t, &stubFeed{})
	ctx := context.Background()

	// 本日0時より前に入館し退館済みのセッション
	yesterday := f.clk.now.Add(-24 * time.Hour)
	out := yesterday.Add(time.Hour)
	min := 60
	if err := f.sessionRepo.Create(ctx, &model.Session{
		ID:        "old",
		PatronID:  "STU-0001",
		CheckInAt: yesterday,
	}); err != nil {
		t.Fatalf("セッションの作成に失敗: %v", err)
	}
	if _, err := f.sessionRepo.Close(ctx, "old", out, min, "Manual Checkout"); err != nil {
		t.Fatalf("セッションのクローズに失敗: %v", err)
	}

	// 本日入館のセッション
	if err := f.sessionRepo.Create(ctx, &model.Session{
		ID:        "today",
		PatronID:  "STU-0002",
		CheckInAt: f.clk.now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("セッションの作成に失敗: %v", err)
	}

	if err := f.store.Resync(ctx); err != nil {
		t.Fatalf("Resync failed: %v", err)
	}

	today := f.store.TodaySessions()
	if len(today) != 1 {
		t.Fatalf("本日セッション数 = %d, want 1", len(today))
	}
	if today[0].ID != "today" {
		t.Errorf("本日セッション = %q, want today", today[0].ID)
	}
}
