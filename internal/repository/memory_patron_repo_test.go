package repository

import (
	"context"
	"testing"

	"github.com/hitoshi/seatman/internal/model"
)

func TestMemoryPatronRepoNextID(t *testing.T) {
	repo := NewMemoryPatronRepo()
	ctx := context.Background()

	id, err := repo.NextID(ctx, model.PatronCategoryStudent)
	if err != nil {
		t.Fatalf("NextID failed: %v", err)
	}
	if id != "STU-0001" {
		t.Errorf("NextID = %q, want STU-0001", id)
	}

	if err := repo.Create(ctx, &model.Patron{ID: "STU-0042", Category: model.PatronCategoryStudent, Name: "山田太郎"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	id, err = repo.NextID(ctx, model.PatronCategoryStudent)
	if err != nil {
		t.Fatalf("NextID failed: %v", err)
	}
	if id != "STU-0043" {
		t.Errorf("採番は既存の最大連番+1であるべき: %q, want STU-0043", id)
	}

	// 他区分の連番には影響しない
	id, err = repo.NextID(ctx, model.PatronCategoryVisitor)
	if err != nil {
		t.Fatalf("NextID failed: %v", err)
	}
	if id != "VIS-0001" {
		t.Errorf("区分ごとに独立した連番であるべき: %q, want VIS-0001", id)
	}
}

func TestMemoryPatronRepoNextIDInvalidCategory(t *testing.T) {
	repo := NewMemoryPatronRepo()

	if _, err := repo.NextID(context.Background(), model.PatronCategory("unknown")); err == nil {
		t.Error("未定義の区分の採番はエラーを返すべき")
	}
}

func TestMemoryPatronRepoAddTotalHours(t *testing.T) {
	repo := NewMemoryPatronRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.Patron{ID: "STU-0001", Category: model.PatronCategoryStudent, Name: "山田太郎"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.AddTotalHours(ctx, "STU-0001", 1.5); err != nil {
		t.Fatalf("AddTotalHours failed: %v", err)
	}
	if err := repo.AddTotalHours(ctx, "STU-0001", 0.5); err != nil {
		t.Fatalf("AddTotalHours failed: %v", err)
	}

	p, _ := repo.FindByID(ctx, "STU-0001")
	if p.TotalHours != 2.0 {
		t.Errorf("TotalHours = %v, want 2.0", p.TotalHours)
	}
}

func TestMemoryPatronRepoUpdatePreservesTotalHours(t *testing.T) {
	repo := NewMemoryPatronRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.Patron{ID: "STU-0001", Category: model.PatronCategoryStudent, Name: "山田太郎"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.AddTotalHours(ctx, "STU-0001", 3.0); err != nil {
		t.Fatalf("AddTotalHours failed: %v", err)
	}

	// 更新リクエストのTotalHoursは無視され、既存の累積値が保持される
	if err := repo.Update(ctx, &model.Patron{ID: "STU-0001", Category: model.PatronCategoryStudent, Name: "山田次郎", TotalHours: 999}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	p, _ := repo.FindByID(ctx, "STU-0001")
	if p.TotalHours != 3.0 {
		t.Errorf("累積利用時間は更新で上書きされないべき: %v", p.TotalHours)
	}
	if p.Name != "山田次郎" {
		t.Errorf("Name = %q, want 山田次郎", p.Name)
	}
}
