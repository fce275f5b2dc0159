package rewards

import (
	"fmt"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
)

// Diagnostics collects notices emitted while calculating. A nil *Diagnostics
// is valid and discards everything.
type Diagnostics struct {
	notices []domain.Notice
}

// NewDiagnostics returns an empty collector.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

func (d *Diagnostics) add(code domain.NoticeCode, field, value, format string, args ...any) {
	if d == nil {
		return
	}
	d.notices = append(d.notices, domain.Notice{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
		Value:   value,
	})
}

// Append records notices produced outside the calculations.
func (d *Diagnostics) Append(notices ...domain.Notice) {
	if d == nil {
		return
	}
	d.notices = append(d.notices, notices...)
}

// Notices returns the collected notices; never nil.
func (d *Diagnostics) Notices() []domain.Notice {
	if d == nil || len(d.notices) == 0 {
		return []domain.Notice{}
	}
	out := make([]domain.Notice, len(d.notices))
	copy(out, d.notices)
	return out
}

// Has reports whether a notice with the given code was recorded.
func (d *Diagnostics) Has(code domain.NoticeCode) bool {
	if d == nil {
		return false
	}
	for _, n := range d.notices {
		if n.Code == code {
			return true
		}
	}
	return false
}

// Len returns the number of notices recorded.
func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	return len(d.notices)
}
