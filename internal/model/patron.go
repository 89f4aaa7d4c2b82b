// Package model はドメインモデルを定義する。
package model

import "time"

// PatronCategory は利用者区分を表す。
type PatronCategory string

const (
	// PatronCategoryStudent は学生を表す。
	PatronCategoryStudent PatronCategory = "student"
	// PatronCategoryAcademicStaff は教員を表す。
	PatronCategoryAcademicStaff PatronCategory = "academic_staff"
	// PatronCategoryNonAcademicStaff は事務職員を表す。
	PatronCategoryNonAcademicStaff PatronCategory = "non_academic_staff"
	// PatronCategoryVisitor は外部利用者を表す。
	PatronCategoryVisitor PatronCategory = "visitor"
)

// AllPatronCategories は定義済みの全利用者区分を列挙順に返す。
// 在館者数の区分別集計などで使用する。
var AllPatronCategories = []PatronCategory{
	PatronCategoryStudent,
	PatronCategoryAcademicStaff,
	PatronCategoryNonAcademicStaff,
	PatronCategoryVisitor,
}

// Valid は区分が定義済みのいずれかであるかを返す。
func (c PatronCategory) Valid() bool {
	switch c {
	case PatronCategoryStudent,
		PatronCategoryAcademicStaff,
		PatronCategoryNonAcademicStaff,
		PatronCategoryVisitor:
		return true
	}
	return false
}

// IDPrefix は利用者ID生成に使用する区分プレフィックスを返す。
// 利用者IDは「<プレフィックス>-<ゼロ埋め連番>」形式（例: STU-0042）。
func (c PatronCategory) IDPrefix() string {
	switch c {
	case PatronCategoryStudent:
		return "STU"
	case PatronCategoryAcademicStaff:
		return "ACS"
	case PatronCategoryNonAcademicStaff:
		return "NAS"
	case PatronCategoryVisitor:
		return "VIS"
	default:
		return ""
	}
}

// Patron は図書館の登録利用者を表す。
// 区分固有フィールド（Level/Program, Department, NationalID）は
// 該当区分以外では空文字列のまま保持する。
type Patron struct {
	ID         string // 形式: <区分プレフィックス>-<ゼロ埋め連番>
	Category   PatronCategory
	Name       string
	Email      string
	Phone      string
	Level      string // 学生のみ: 学年
	Program    string // 学生のみ: 専攻
	Department string // 教職員のみ: 所属部署
	NationalID string // 外部利用者のみ: 身分証番号
	PhotoURL   string
	// TotalHours は累積利用時間（時間単位）。
	// 退館時に加算される非正規化集計値であり、トランザクション整合は保証しない。
	TotalHours float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
