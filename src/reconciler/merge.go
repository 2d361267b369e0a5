package reconciler

import (
	"time"

	"github.com/shopspring/decimal"
)

// merger folds an incoming sighting into a stored entity field by field.
// Null incoming values never clear stored ones; a stored null is always
// filled; conflicting values are replaced only when the incoming record was
// collected more recently.
type merger struct {
	newer   bool
	changed bool
}

func (m *merger) text(dst *string, in string) {
	if in == "" || *dst == in {
		return
	}
	if *dst == "" || m.newer {
		*dst = in
		m.changed = true
	}
}

func (m *merger) str(dst **string, in *string) {
	if in == nil {
		return
	}
	if *dst != nil && **dst == *in {
		return
	}
	if *dst == nil || m.newer {
		v := *in
		*dst = &v
		m.changed = true
	}
}

// fill sets dst only when it is null. Used for identifiers that must not drift.
func (m *merger) fill(dst **string, in *string) {
	if in == nil || *dst != nil {
		return
	}
	v := *in
	*dst = &v
	m.changed = true
}

func (m *merger) date(dst **time.Time, in *time.Time) {
	if in == nil {
		return
	}
	if *dst != nil && (*dst).Equal(*in) {
		return
	}
	if *dst == nil || m.newer {
		v := *in
		*dst = &v
		m.changed = true
	}
}

func (m *merger) id(dst **int64, in *int64) {
	if in == nil {
		return
	}
	if *dst != nil && **dst == *in {
		return
	}
	if *dst == nil || m.newer {
		v := *in
		*dst = &v
		m.changed = true
	}
}

func (m *merger) dec(dst *decimal.NullDecimal, in decimal.NullDecimal) {
	if !in.Valid {
		return
	}
	if dst.Valid && dst.Decimal.Equal(in.Decimal) {
		return
	}
	if !dst.Valid || m.newer {
		*dst = in
		m.changed = true
	}
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
