// Package monitor は長時間滞在の監視ジョブを提供する。
// 固定間隔のティッカーで入館中セッションを走査し、
// 自動退館ポリシーと長時間滞在アラートポリシーを適用する。
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/seatman/internal/clock"
	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/notify"
	"github.com/hitoshi/seatman/internal/repository"
)

// LifecycleService はモニターが必要とするライフサイクル操作のインターフェース。
type LifecycleService interface {
	// AutoCheckOut は滞在上限到達時刻を退館時刻として強制退館を実行する。
	AutoCheckOut(ctx context.Context, sessionID string, at time.Time) (*model.Session, bool, error)
	// MarkAlertTriggered はアラート送信済みフラグを立てる。
	MarkAlertTriggered(ctx context.Context, sessionID string) (bool, error)
}

// Recorder はモニターのメトリクス記録インターフェース。
type Recorder interface {
	RecordOverdueAlert()
	RecordNotificationFailure()
	RecordMonitorTickDuration(duration time.Duration)
}

// Monitor は入館中セッションの監視ジョブ。
// ティックは単一ゴルーチンで逐次実行され、重複実行は発生しない。
// ポリシー設定は毎ティックの先頭で読み込み、ティック途中では再読み込みしない。
type Monitor struct {
	sessionRepo  repository.SessionRepository
	patronRepo   repository.PatronRepository
	settingsRepo repository.SettingsRepository
	lifecycle    LifecycleService
	dispatcher   notify.Dispatcher
	clk          clock.Clock
	logger       *slog.Logger
	recorder     Recorder
}

// NewMonitor はMonitorの新しいインスタンスを生成する。
// recorderはnilを許容する（メトリクス未使用時）。
func NewMonitor(
	sessionRepo repository.SessionRepository,
	patronRepo repository.PatronRepository,
	settingsRepo repository.SettingsRepository,
	lifecycle LifecycleService,
	dispatcher notify.Dispatcher,
	clk clock.Clock,
	logger *slog.Logger,
	recorder Recorder,
) *Monitor {
	return &Monitor{
		sessionRepo:  sessionRepo,
		patronRepo:   patronRepo,
		settingsRepo: settingsRepo,
		lifecycle:    lifecycle,
		dispatcher:   dispatcher,
		clk:          clk,
		logger:       logger,
		recorder:     recorder,
	}
}

// Start は固定間隔のティッカーでモニターを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("滞在監視モニターを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := m.RunOnce(ctx); err != nil {
		m.logger.Error("監視ティックの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("滞在監視モニターを停止しました")
			return
		case <-ticker.C:
			if err := m.RunOnce(ctx); err != nil {
				m.logger.Error("監視ティックの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回の監視ティックを実行する。
// セッション単位の失敗（利用者未検出・配信失敗等）は記録して次のセッションへ進み、
// ティック全体を中断させない。設定・一覧の取得失敗のみエラーとして返す。
func (m *Monitor) RunOnce(ctx context.Context) error {
	start := time.Now()

	settings, err := m.settingsRepo.Get(ctx)
	if err != nil {
		return err
	}

	sessions, err := m.sessionRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		return nil
	}

	now := m.clk.Now()
	for _, sess := range sessions {
		m.processSession(ctx, now, settings, sess)
	}

	duration := time.Since(start)
	if m.recorder != nil {
		m.recorder.RecordMonitorTickDuration(duration)
	}

	m.logger.Info("監視ティックが完了しました",
		slog.Int("active_sessions", len(sessions)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// processSession は1セッションへのポリシー適用を行う。
// 自動退館とアラートは同一ティック内で排他であり、自動退館が成立した
// セッションにはアラート判定を行わない。
func (m *Monitor) processSession(ctx context.Context, now time.Time, settings *model.AppSettings, sess *model.Session) {
	elapsed := now.Sub(sess.CheckInAt)

	// 時計ずれ等による未来の入館時刻。ポリシーは適用せず次ティックに委ねる。
	if elapsed < 0 {
		m.logger.Warn("入館時刻が未来のためこのティックではスキップします",
			slog.String("session_id", sess.ID),
			slog.Time("check_in_at", sess.CheckInAt),
		)
		return
	}

	elapsedMin := int(elapsed / time.Minute)

	// 自動退館ポリシー
	if settings.AutoCheckoutEnabled && elapsedMin >= settings.AutoCheckoutHours*60 {
		deadline := sess.CheckInAt.Add(time.Duration(settings.AutoCheckoutHours) * time.Hour)
		if _, closed, err := m.lifecycle.AutoCheckOut(ctx, sess.ID, deadline); err != nil {
			m.logger.Error("自動退館に失敗しました",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		} else if closed {
			m.logger.Info("滞在上限到達により自動退館しました",
				slog.String("session_id", sess.ID),
				slog.String("patron_id", sess.PatronID),
				slog.Int("elapsed_min", elapsedMin),
			)
		}
		return
	}

	// 長時間滞在アラートポリシー
	if !settings.NotificationsEnabled || sess.AlertTriggered || elapsedMin < settings.AlertThresholdMin {
		return
	}

	patron, err := m.patronRepo.FindByID(ctx, sess.PatronID)
	if err != nil {
		m.logger.Error("アラート対象利用者の取得に失敗しました",
			slog.String("session_id", sess.ID),
			slog.String("patron_id", sess.PatronID),
			slog.String("error", err.Error()),
		)
		return
	}
	if patron == nil {
		m.logger.Warn("アラート対象利用者が見つかりません",
			slog.String("session_id", sess.ID),
			slog.String("patron_id", sess.PatronID),
		)
		return
	}

	// 配信の成否にかかわらずフラグを確定させる（at-most-once）。
	// 配信失敗時の再送は行わない。
	if err := m.dispatcher.Dispatch(ctx, patron, elapsedMin, settings.NotifyRecipient); err != nil {
		m.logger.Error("アラートの配信に失敗しました",
			slog.String("session_id", sess.ID),
			slog.String("patron_id", sess.PatronID),
			slog.String("error", err.Error()),
		)
		if m.recorder != nil {
			m.recorder.RecordNotificationFailure()
		}
	}

	marked, err := m.lifecycle.MarkAlertTriggered(ctx, sess.ID)
	if err != nil {
		m.logger.Error("アラートフラグの確定に失敗しました",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if marked && m.recorder != nil {
		m.recorder.RecordOverdueAlert()
	}
}
