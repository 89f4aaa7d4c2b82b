// Package session は入退館の状態機械（ライフサイクルサービス)を提供する。
// 状態遷移はOPEN→CLOSEDの一方向のみで、再入館は新規セッションとして扱う。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/seatman/internal/clock"
	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/repository"
)

// Recorder は入退館イベントのメトリクス記録インターフェース。
type Recorder interface {
	// RecordCheckIn は入館を記録する。
	RecordCheckIn()
	// RecordCheckOut は退館を記録する。kindは"manual"または"auto"。
	RecordCheckOut(kind string)
}

// Service は入退館の状態機械を実装するライフサイクルサービス。
// ストレージバックエンド（PostgreSQL/インメモリ）は構築時に注入され、
// 接続モードの分岐をサービス内に持たない。
type Service struct {
	sessionRepo repository.SessionRepository
	patronRepo  repository.PatronRepository
	clk         clock.Clock
	logger      *slog.Logger
	recorder    Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilを許容する（メトリクス未使用時）。
func NewService(
	sessionRepo repository.SessionRepository,
	patronRepo repository.PatronRepository,
	clk clock.Clock,
	logger *slog.Logger,
	recorder Recorder,
) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		patronRepo:  patronRepo,
		clk:         clk,
		logger:      logger,
		recorder:    recorder,
	}
}

// CheckIn は利用者の入館セッションを開始する。
// 同一利用者の入館中セッションが既に存在する場合は新規作成せず、
// 既存セッションとcreated=falseを返す（冪等ガード）。
// 並行入館でストア側の一意制約に当たった場合も同様に既存セッションへ収束する。
func (s *Service) CheckIn(ctx context.Context, patronID string) (*model.Session, bool, error) {
	existing, err := s.sessionRepo.FindActiveByPatronID(ctx, patronID)
	if err != nil {
		return nil, false, fmt.Errorf("入館中セッションの確認に失敗しました: %w", err)
	}
	if existing != nil {
		s.logger.Info("既に入館中のため入館要求を無視します",
			slog.String("patron_id", patronID),
			slog.String("session_id", existing.ID),
		)
		return existing, false, nil
	}

	now := s.clk.Now()
	sess := &model.Session{
		PatronID:  patronID,
		CheckInAt: now,
	}

	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrActiveSessionExists) {
			// 別クライアントの入館が先着した。既存セッションへ収束させる。
			existing, ferr := s.sessionRepo.FindActiveByPatronID(ctx, patronID)
			if ferr != nil {
				return nil, false, fmt.Errorf("入館中セッションの再取得に失敗しました: %w", ferr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordCheckIn()
	}

	s.logger.Info("入館しました",
		slog.String("patron_id", patronID),
		slog.String("session_id", sess.ID),
	)

	return sess, true, nil
}

// CheckOut は手動退館を実行する。備考が空の場合はデフォルト備考を設定する。
// セッションが存在しない・既に退館済みの場合は何もせずclosed=falseを返す。
// 別クライアントのリアルタイムイベントが先着して既に退館済みとなるのは
// 正常な競合であり、エラーにはしない。
func (s *Service) CheckOut(ctx context.Context, sessionID, notes string) (*model.Session, bool, error) {
	if notes == "" {
		notes = model.NotesManualCheckout
	}
	return s.close(ctx, sessionID, s.clk.Now(), notes, "manual")
}

// AutoCheckOut はモニターによる強制退館を実行する。
// 退館時刻には滞在上限の到達時刻（at）を用いるため、ティックの遅延に
// かかわらず滞在時間は上限ちょうどで確定する。備考はシステム既定の文言。
func (s *Service) AutoCheckOut(ctx context.Context, sessionID string, at time.Time) (*model.Session, bool, error) {
	return s.close(ctx, sessionID, at, model.NotesAutoCheckout, "auto")
}

// close は退館処理の共通実装。
// ストア側の条件付き更新により、並行する退館要求があっても成立するのは1件のみ。
func (s *Service) close(ctx context.Context, sessionID string, at time.Time, notes, kind string) (*model.Session, bool, error) {
	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if sess == nil {
		s.logger.Info("存在しないセッションへの退館要求を無視します",
			slog.String("session_id", sessionID),
		)
		return nil, false, nil
	}
	if !sess.Active() {
		s.logger.Info("既に退館済みのため退館要求を無視します",
			slog.String("session_id", sessionID),
		)
		return sess, false, nil
	}

	durationMin := model.ComputeDurationMin(sess.CheckInAt, at)

	closed, err := s.sessionRepo.Close(ctx, sessionID, at, durationMin, notes)
	if err != nil {
		return nil, false, fmt.Errorf("セッションの退館処理に失敗しました: %w", err)
	}
	if !closed {
		// 並行する退館が先着した。確定済みの状態を返す。
		sess, err = s.sessionRepo.FindByID(ctx, sessionID)
		if err != nil {
			return nil, false, fmt.Errorf("セッションの再取得に失敗しました: %w", err)
		}
		return sess, false, nil
	}

	sess.CheckOutAt = &at
	sess.DurationMin = &durationMin
	sess.Notes = notes

	if s.recorder != nil {
		s.recorder.RecordCheckOut(kind)
	}

	// 累積利用時間の結果整合更新。失敗しても退館自体は成立している。
	if s.patronRepo != nil {
		hours := float64(durationMin) / 60.0
		if err := s.patronRepo.AddTotalHours(ctx, sess.PatronID, hours); err != nil {
			s.logger.Error("累積利用時間の更新に失敗しました",
				slog.String("patron_id", sess.PatronID),
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("退館しました",
		slog.String("session_id", sessionID),
		slog.String("patron_id", sess.PatronID),
		slog.Int("duration_min", durationMin),
		slog.String("kind", kind),
	)

	return sess, true, nil
}

// MarkAlertTriggered はセッションのアラート送信済みフラグを立てる。
// 未送信から送信済みへ遷移した場合のみtrueを返す（高々1回の保証）。
func (s *Service) MarkAlertTriggered(ctx context.Context, sessionID string) (bool, error) {
	marked, err := s.sessionRepo.MarkAlertTriggered(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("アラートフラグの更新に失敗しました: %w", err)
	}
	return marked, nil
}
