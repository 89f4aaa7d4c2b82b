package patron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/seatman/internal/model"
	"github.com/hitoshi/seatman/internal/repository"
	"github.com/hitoshi/seatman/internal/security"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *repository.MemoryPatronRepo) {
	t.Helper()
	repo := repository.NewMemoryPatronRepo()
	clk := &fakeClock{now: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewService(repo, security.NewTextSanitizer(), clk, logger), repo
}

func TestCreateAssignsSequentialID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, Input{Category: "student", Name: "山田太郎"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if first.ID != "STU-0001" {
		t.Errorf("ID = %q, want STU-0001", first.ID)
	}

	second, err := svc.Create(ctx, Input{Category: "student", Name: "佐藤花子"})
	if err != nil {
		t.Fatalf("2人目のCreate failed: %v", err)
	}
	if second.ID != "STU-0002" {
		t.Errorf("ID = %q, want STU-0002", second.ID)
	}

	// 区分ごとに独立した連番
	visitor, err := svc.Create(ctx, Input{Category: "visitor", Name: "鈴木一郎"})
	if err != nil {
		t.Fatalf("外部利用者のCreate failed: %v", err)
	}
	if visitor.ID != "VIS-0001" {
		t.Errorf("ID = %q, want VIS-0001", visitor.ID)
	}
}

func TestCreateInvalidCategory(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), Input{Category: "alumni", Name: "山田太郎"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCategory {
		t.Errorf("無効な区分はINVALID_CATEGORYエラーを返すべき: %v", err)
	}
}

func TestCreateNameMissing(t *testing.T) {
	svc, _ := newTestService(t)

	// サニタイズ後に空になる入力も未入力として扱う
	for _, name := range []string{"", "   ", "<script>alert(1)</script>"} {
		_, err := svc.Create(context.Background(), Input{Category: "student", Name: name})
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePatronNameMissing {
			t.Errorf("名前 %q はPATRON_NAME_MISSINGエラーを返すべき: %v", name, err)
		}
	}
}

func TestCreateSanitizesFreeText(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.Create(context.Background(), Input{
		Category: "student",
		Name:     "  <b>山田</b>太郎  ",
		Level:    "<i>3年</i>",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Name != "山田太郎" {
		t.Errorf("Name = %q, want 山田太郎（タグ除去・前後空白除去）", p.Name)
	}
	if p.Level != "3年" {
		t.Errorf("Level = %q, want 3年", p.Level)
	}
}

func TestCreateShapesCategoryFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	input := Input{
		Name:       "テスト利用者",
		Level:      "2年",
		Program:    "情報工学",
		Department: "総務課",
		NationalID: "AB123456",
	}

	tests := []struct {
		category string
		check    func(t *testing.T, p *model.Patron)
	}{
		{"student", func(t *testing.T, p *model.Patron) {
			if p.Level != "2年" || p.Program != "情報工学" {
				t.Errorf("学生はLevel/Programを保持すべき: %+v", p)
			}
			if p.Department != "" || p.NationalID != "" {
				t.Errorf("学生は他区分のフィールドを保持しないべき: %+v", p)
			}
		}},
		{"academic_staff", func(t *testing.T, p *model.Patron) {
			if p.Department != "総務課" {
				t.Errorf("教職員はDepartmentを保持すべき: %+v", p)
			}
			if p.Level != "" || p.Program != "" || p.NationalID != "" {
				t.Errorf("教職員は他区分のフィールドを保持しないべき: %+v", p)
			}
		}},
		{"visitor", func(t *testing.T, p *model.Patron) {
			if p.NationalID != "AB123456" {
				t.Errorf("外部利用者はNationalIDを保持すべき: %+v", p)
			}
			if p.Level != "" || p.Program != "" || p.Department != "" {
				t.Errorf("外部利用者は他区分のフィールドを保持しないべき: %+v", p)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			in := input
			in.Category = tt.category
			p, err := svc.Create(ctx, in)
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			tt.check(t, p)
		})
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Update(context.Background(), "STU-9999", Input{Name: "山田太郎"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePatronNotFound {
		t.Errorf("存在しない利用者の更新はPATRON_NOT_FOUNDエラーを返すべき: %v", err)
	}
}

func TestUpdatePreservesIDAndCategory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, Input{Category: "student", Name: "山田太郎"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, Input{Name: "山田次郎", Email: "jiro@example.edu"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("IDは変更されないべき: %q", updated.ID)
	}
	if updated.Category != model.PatronCategoryStudent {
		t.Errorf("区分は変更されないべき: %q", updated.Category)
	}
	if updated.Name != "山田次郎" {
		t.Errorf("Name = %q, want 山田次郎", updated.Name)
	}
}

func TestDeleteNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), "VIS-9999")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePatronNotFound {
		t.Errorf("存在しない利用者の削除はPATRON_NOT_FOUNDエラーを返すべき: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "STU-0001")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePatronNotFound {
		t.Errorf("存在しない利用者の取得はPATRON_NOT_FOUNDエラーを返すべき: %v", err)
	}
}
