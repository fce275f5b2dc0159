package domain

// NoticeCode classifies a diagnostic emitted by the reward calculations.
type NoticeCode string

const (
	NoticeUnknownGrade      NoticeCode = "unknown_grade"
	NoticeUnparseableGrade  NoticeCode = "unparseable_grade"
	NoticeGradeConverted    NoticeCode = "grade_converted"
	NoticeInvalidBaseAmount NoticeCode = "invalid_base_amount"
	NoticeBaseAmountDefault NoticeCode = "base_amount_defaulted"
	NoticeInvalidScore      NoticeCode = "invalid_score"
	NoticeBelowBonusMinimum NoticeCode = "below_bonus_minimum"
	NoticeInvalidBonus      NoticeCode = "invalid_bonus"
)

// Notice is a non-fatal diagnostic produced alongside a calculation result.
type Notice struct {
	Code    NoticeCode `json:"code"`
	Message string     `json:"message"`
	Field   string     `json:"field,omitempty"`
	Value   string     `json:"value,omitempty"`
}
