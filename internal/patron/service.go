// Package patron は利用者台帳のサービスを提供する。
// 利用者IDの採番、区分固有フィールドの整形、自由入力のサニタイズを担う。
package patron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/seatman/internal/clock"
	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/repository"
	"github.com/hitoshi/seatman/internal/security"
)

// Input は利用者の作成・更新リクエストを表す。
type Input struct {
	Category   string
	Name       string
	Email      string
	Phone      string
	Level      string
	Program    string
	Department string
	NationalID string
	PhotoURL   string
}

// Service は利用者台帳のサービス。
type Service struct {
	patronRepo repository.PatronRepository
	sanitizer  security.TextSanitizerService
	clk        clock.Clock
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	patronRepo repository.PatronRepository,
	sanitizer security.TextSanitizerService,
	clk clock.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		patronRepo: patronRepo,
		sanitizer:  sanitizer,
		clk:        clk,
		logger:     logger,
	}
}

// Create は新規利用者を登録する。
// 利用者IDは区分ごとの連番で採番される（例: STU-0042）。
func (s *Service) Create(ctx context.Context, input Input) (*model.Patron, error) {
	category := model.PatronCategory(input.Category)
	if !category.Valid() {
		return nil, model.NewInvalidCategoryError(input.Category)
	}

	name := s.sanitizer.Sanitize(input.Name)
	if name == "" {
		return nil, model.NewPatronNameMissingError()
	}

	id, err := s.patronRepo.NextID(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("利用者IDの採番に失敗しました: %w", err)
	}

	now := s.clk.Now()
	p := &model.Patron{
		ID:        id,
		Category:  category,
		Name:      name,
		Email:     s.sanitizer.Sanitize(input.Email),
		Phone:     s.sanitizer.Sanitize(input.Phone),
		PhotoURL:  s.sanitizer.Sanitize(input.PhotoURL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.applyCategoryFields(p, input)

	if err := s.patronRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("利用者の作成に失敗しました: %w", err)
	}

	s.logger.Info("利用者を登録しました",
		slog.String("patron_id", p.ID),
		slog.String("category", string(p.Category)),
	)

	return p, nil
}

// Update は既存利用者の情報を更新する。
// 利用者IDと区分は変更できない。累積利用時間は退館処理のみが更新する。
func (s *Service) Update(ctx context.Context, id string, input Input) (*model.Patron, error) {
	existing, err := s.patronRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("利用者の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewPatronNotFoundError(id)
	}

	name := s.sanitizer.Sanitize(input.Name)
	if name == "" {
		return nil, model.NewPatronNameMissingError()
	}

	existing.Name = name
	existing.Email = s.sanitizer.Sanitize(input.Email)
	existing.Phone = s.sanitizer.Sanitize(input.Phone)
	existing.PhotoURL = s.sanitizer.Sanitize(input.PhotoURL)
	existing.UpdatedAt = s.clk.Now()
	s.applyCategoryFields(existing, input)

	if err := s.patronRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("利用者の更新に失敗しました: %w", err)
	}

	s.logger.Info("利用者情報を更新しました",
		slog.String("patron_id", existing.ID),
	)

	return existing, nil
}

// Delete は利用者を削除する。関連するセッション履歴も削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.patronRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("利用者の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return model.NewPatronNotFoundError(id)
	}

	if err := s.patronRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("利用者の削除に失敗しました: %w", err)
	}

	s.logger.Info("利用者を削除しました",
		slog.String("patron_id", id),
	)

	return nil
}

// Get は指定IDの利用者を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Patron, error) {
	p, err := s.patronRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("利用者の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPatronNotFoundError(id)
	}
	return p, nil
}

// List は全利用者を返す。
func (s *Service) List(ctx context.Context) ([]*model.Patron, error) {
	patrons, err := s.patronRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("利用者一覧の取得に失敗しました: %w", err)
	}
	return patrons, nil
}

// applyCategoryFields は区分固有フィールドを整形する。
// 該当区分以外のフィールドは空文字列にリセットし、区分と無関係な値が残らないようにする。
func (s *Service) applyCategoryFields(p *model.Patron, input Input) {
	p.Level = ""
	p.Program = ""
	p.Department = ""
	p.NationalID = ""

	switch p.Category {
	case model.PatronCategoryStudent:
		p.Level = s.sanitizer.Sanitize(input.Level)
		p.Program = s.sanitizer.Sanitize(input.Program)
	case model.PatronCategoryAcademicStaff, model.PatronCategoryNonAcademicStaff:
		p.Department = s.sanitizer.Sanitize(input.Department)
	case model.PatronCategoryVisitor:
		p.NationalID = s.sanitizer.Sanitize(input.NationalID)
	}
}
