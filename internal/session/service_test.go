package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/repository"
)

// fakeClock はテスト用の固定時計。
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// mockRecorder はメトリクス呼び出しを記録するモック。
type mockRecorder struct {
	checkins  int
	checkouts map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{checkouts: make(map[string]int)}
}

func (m *mockRecorder) RecordCheckIn() { m.checkins++ }

func (m *mockRecorder) RecordCheckOut(kind string) { m.checkouts[kind]++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestService(t *testing.T, clk *fakeClock) (*Service, *repository.MemorySessionRepo, *repository.MemoryPatronRepo, *mockRecorder) {
	t.Helper()
	sessionRepo := repository.NewMemorySessionRepo()
	patronRepo := repository.NewMemoryPatronRepo()
	recorder := newMockRecorder()
	svc := NewService(sessionRepo, patronRepo, clk, discardLogger(), recorder)
	return svc, sessionRepo, patronRepo, recorder
}

func TestCheckInCreatesSession(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)}
	svc, _, _, recorder := newTestService(t, clk)

	sess, created, err := svc.CheckIn(context.Background(), "STU-0001")
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if !created {
		t.Error("新規入館はcreated=trueであるべき")
	}
	if sess.PatronID != "STU-0001" {
		t.Errorf("PatronID = %q, want STU-0001", sess.PatronID)
	}
	if !sess.CheckInAt.Equal(clk.now) {
		t.Errorf("CheckInAt = %v, want %v", sess.CheckInAt, clk.now)
	}
	if !sess.Active() {
		t.Error("入館直後のセッションは入館中であるべき")
	}
	if recorder.checkins != 1 {
		t.Errorf("RecordCheckIn呼び出し回数 = %d, want 1", recorder.checkins)
	}
}

func TestCheckInIdempotent(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)}
	svc, _, _, recorder := newTestService(t, clk)

	first, _, err := svc.CheckIn(context.Background(), "STU-0001")
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}

	clk.now = clk.now.Add(5 * time.Minute)
	second, created, err := svc.CheckIn(context.Background(), "STU-0001")
	if err != nil {
		t.Fatalf("2回目のCheckIn failed: %v", err)
	}
	if created {
		t.Error("入館中の利用者の再入館はcreated=falseであるべき")
	}
	if second.ID != first.ID {
		t.Errorf("既存セッションが返るべき: got %q, want %q", second.ID, first.ID)
	}
	if recorder.checkins != 1 {
		t.Errorf("重複入館ではメトリクスを記録しないべき: checkins = %d", recorder.checkins)
	}
}

func TestCheckOutDefaultNotes(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)}
	svc, _, _, recorder := newTestService(t, clk)

	sess, _, err := svc.CheckIn(context.Background(), "STU-0001")
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}

	clk.now = clk.now.Add(45 * time.Minute)
	closed, ok, err := svc.CheckOut(context.Background(), sess.ID, "")
	if err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}
	if !ok {
		t.Error("入館中セッションの退館はclosed=trueであるべき")
	}
	if closed.Notes != model.NotesManualCheckout {
		t.Errorf("Notes = %q, want %q", closed.Notes, model.NotesManualCheckout)
	}
	if closed.DurationMin == nil || *closed.DurationMin != 45 {
		t.Errorf("DurationMin = %v, want 45", closed.DurationMin)
	}
	if recorder.checkouts["manual"] != 1 {
		t.Errorf("manual退館のメトリクス = %d, want 1", recorder.checkouts["manual"])
	}
}

func TestCheckOutCustomNotesPreserved(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)}
	svc, _, _, _ := newTestService(t, clk)

	sess, _, _ := svc.CheckIn(context.Background(), "STU-0001")

	clk.now = clk.now.Add(10 * time.Minute)
	closed, _, err := svc.CheckOut(context.Background(), sess.ID, "忘れ物のため早退")
	if err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}
	if closed.Notes != "忘れ物のため早退" {
		t.Errorf("指定した備考が保持されるべき: got %q", closed.Notes)
	}
}

func TestCheckOutIdempotent(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)}
	svc, _, _, recorder := newTestService(t, clk)

	sess, _, _ := svc.CheckIn(context.Background(), "STU-0001")

	clk.now = clk.now.Add(30 * time.Minute)
	if _, ok, _ := svc.CheckOut(context.Background(), sess.ID, ""); !ok {
		t.Fatal("1回目の退館は成立すべき")
	}

	clk.now = clk.now.Add(10 * time.Minute)
	again, ok, err := svc.CheckOut(context.Background(), sess.ID, "")
	if err != nil {
		t.Fatalf("2回目のCheckOutはエラーにならないべき: %v", err)
	}
	if ok {
		t.Error("退館済みセッションへの再退館はclosed=falseであるべき")
	}
	if again.DurationMin == nil || *again.DurationMin != 30 {
		t.Errorf("確定済みの滞在時間が変更されないべき: %v", again.DurationMin)
	}
	if recorder.checkouts["manual"] != 1 {
		t.Errorf("重複退館ではメトリクスを記録しないべき: %d", recorder.checkouts["manual"])
	}
}

func TestCheckOutMissingSession(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	svc, _, _, _ := newTestService(t, clk)

	sess, ok, err := svc.CheckOut(context.Background(), "local-999", "")
	if err != nil {
		t.Fatalf("存在しないセッションへの退館はエラーにならないべき: %v", err)
	}
	if ok || sess != nil {
		t.Error("存在しないセッションへの退館は何もしないべき")
	}
}

func TestAutoCheckOutClosesAtDeadline(t *testing.T) {
	checkIn := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	clk := &fakeClock{now: checkIn}
	svc, _, _, recorder := newTestService(t, clk)

	sess, _, _ := svc.CheckIn(context.Background(), "STU-0001")

	// ティックが上限到達の1分後に実行されても、退館時刻は上限到達時刻で確定する
	deadline := checkIn.Add(time.Hour)
	clk.now = checkIn.Add(61 * time.Minute)

	closed, ok, err := svc.AutoCheckOut(context.Background(), sess.ID, deadline)
	if err != nil {
		t.Fatalf("AutoCheckOut failed: %v", err)
	}
	if !ok {
		t.Error("自動退館は成立すべき")
	}
	if !closed.CheckOutAt.Equal(deadline) {
		t.Errorf("CheckOutAt = %v, want %v", closed.CheckOutAt, deadline)
	}
	if closed.DurationMin == nil || *closed.DurationMin != 60 {
		t.Errorf("DurationMin = %v, want 60", closed.DurationMin)
	}
	if closed.Notes != model.NotesAutoCheckout {
		t.Errorf("Notes = %q, want %q", closed.Notes, model.NotesAutoCheckout)
	}
	if recorder.checkouts["auto"] != 1 {
		t.Errorf("auto退館のメトリクス = %d, want 1", recorder.checkouts["auto"])
	}
}

func TestCheckOutAccumulatesTotalHours(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)}
	svc, _, patronRepo, _ := newTestService(t, clk)

	ctx := context.Background()
	if err := patronRepo.Create(ctx, &model.Patron{
		ID:       "STU-0001",
		Category: model.PatronCategoryStudent,
		Name:     "山田太郎",
	}); err != nil {
		t.Fatalf("利用者の作成に失敗: %v", err)
	}

	sess, _, _ := svc.CheckIn(ctx, "STU-0001")
	clk.now = clk.now.Add(90 * time.Minute)
	if _, ok, err := svc.CheckOut(ctx, sess.ID, ""); err != nil || !ok {
		t.Fatalf("CheckOut failed: ok=%v err=%v", ok, err)
	}

	p, err := patronRepo.FindByID(ctx, "STU-0001")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if p.TotalHours != 1.5 {
		t.Errorf("TotalHours = %v, want 1.5", p.TotalHours)
	}
}

func TestMarkAlertTriggeredOnce(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	svc, _, _, _ := newTestService(t, clk)

	sess, _, _ := svc.CheckIn(context.Background(), "STU-0001")

	first, err := svc.MarkAlertTriggered(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("MarkAlertTriggered failed: %v", err)
	}
	if !first {
		t.Error("初回のフラグ設定はtrueを返すべき")
	}

	second, err := svc.MarkAlertTriggered(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("2回目のMarkAlertTriggered failed: %v", err)
	}
	if second {
		t.Error("設定済みフラグへの再設定はfalseを返すべき（高々1回の保証）")
	}
}
