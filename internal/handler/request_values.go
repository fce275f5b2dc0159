package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// Lenient request values
//
// Calculation inputs never fail decoding. A value of the wrong shape is
// kept as its raw text and degrades to zero downstream with a notice.
// ============================================================

// gradeValue accepts a grade as a JSON string ("B", "87") or number (87).
// Any other JSON value is kept as its raw text and later treated as an
// unparseable grade.
type gradeValue string

func (g *gradeValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*g = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*g = gradeValue(b)
			return nil
		}
		*g = gradeValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			*g = gradeValue(b)
			return nil
		}
		*g = gradeValue(n.String())
	}
	return nil
}

// amountValue accepts a money amount as a JSON number or numeric string.
// Anything else decodes as missing and keeps the raw text in Raw.
type amountValue struct {
	Amount decimal.NullDecimal
	Raw    string
}

func (a *amountValue) UnmarshalJSON(b []byte) error {
	*a = amountValue{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	text := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &text); err != nil {
			a.Raw = string(b)
			return nil
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		a.Raw = text
		return nil
	}
	a.Amount = decimal.NewNullDecimal(d)
	return nil
}

// invalid reports whether a value was supplied but could not be read.
func (a amountValue) invalid() bool {
	return !a.Amount.Valid && a.Raw != ""
}

// scoreValue accepts a score as a JSON number or numeric string.
type scoreValue struct {
	Score *float64
	Raw   string
}

func (v *scoreValue) UnmarshalJSON(b []byte) error {
	*v = scoreValue{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	f, ok := parseScoreJSON(b)
	if !ok {
		v.Raw = string(b)
		return nil
	}
	v.Score = &f
	return nil
}

func parseScoreJSON(b []byte) (float64, bool) {
	text := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &text); err != nil {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// assessmentRequest is one set of behavior category ratings. Categories that
// are not numbers score 0 and are listed in invalid.
type assessmentRequest struct {
	scores  domain.BehaviorScores
	invalid []invalidInput
}

type invalidInput struct {
	field string
	raw   string
}

func (a *assessmentRequest) UnmarshalJSON(b []byte) error {
	*a = assessmentRequest{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		a.invalid = append(a.invalid, invalidInput{field: "", raw: string(bytes.TrimSpace(b))})
		return nil
	}

	for _, c := range scoreCategories(&a.scores) {
		raw, ok := fields[c.name]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		f, ok := parseScoreJSON(raw)
		if !ok {
			a.invalid = append(a.invalid, invalidInput{field: c.name, raw: string(raw)})
			continue
		}
		*c.dst = f
	}
	return nil
}

type scoreCategory struct {
	name string
	dst  *float64
}

func scoreCategories(s *domain.BehaviorScores) []scoreCategory {
	return []scoreCategory{
		{"diet", &s.Diet},
		{"exercise", &s.Exercise},
		{"work", &s.Work},
		{"hygiene", &s.Hygiene},
		{"respect", &s.Respect},
		{"responsibilities", &s.Responsibilities},
		{"attitude", &s.Attitude},
		{"cooperation", &s.Cooperation},
		{"courtesy", &s.Courtesy},
		{"service", &s.Service},
	}
}

// toAssessments converts the request ratings and reports every category that
// could not be read as an invalid_score notice.
func toAssessments(prefix string, in []assessmentRequest) ([]domain.BehaviorAssessment, []domain.Notice) {
	out := make([]domain.BehaviorAssessment, 0, len(in))
	var notices []domain.Notice
	for i, a := range in {
		out = append(out, domain.BehaviorAssessment{BehaviorScores: a.scores})
		for _, bad := range a.invalid {
			field := fmt.Sprintf("%s[%d]", prefix, i)
			if bad.field != "" {
				field += "." + bad.field
			}
			notices = append(notices, domain.Notice{
				Code:    domain.NoticeInvalidScore,
				Message: "score is not a number, treated as 0",
				Field:   field,
				Value:   bad.raw,
			})
		}
	}
	return out, notices
}

type bonusRequest struct {
	BonusAmount amountValue `json:"bonusAmount"`
	Reason      string      `json:"reason"`
}

// toBonuses drops bonuses whose amount could not be read.
func toBonuses(in []bonusRequest) ([]domain.BehaviorBonus, []domain.Notice) {
	out := make([]domain.BehaviorBonus, 0, len(in))
	var notices []domain.Notice
	for i, b := range in {
		if b.BonusAmount.invalid() {
			notices = append(notices, domain.Notice{
				Code:    domain.NoticeInvalidBonus,
				Message: "bonus amount is not a number, ignored",
				Field:   fmt.Sprintf("bonuses[%d].bonusAmount", i),
				Value:   b.BonusAmount.Raw,
			})
			continue
		}
		out = append(out, domain.BehaviorBonus{BonusAmount: b.BonusAmount.Amount.Decimal, Reason: b.Reason})
	}
	return out, notices
}
