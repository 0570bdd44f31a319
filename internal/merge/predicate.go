package merge

import (
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/csvmerge/internal/tabular"
)

// Predicate decides whether a keyed record takes part in the merge.
type Predicate func(tabular.Record) bool

// AcceptAll is the default predicate.
func AcceptAll(tabular.Record) bool { return true }

// ColumnContains accepts records whose column value contains substr.
// A record without the column is rejected.
func ColumnContains(column, substr string) Predicate {
	return func(r tabular.Record) bool {
		v, ok := r.Get(column)
		return ok && strings.Contains(v, substr)
	}
}

// LongerThan accepts records whose column holds more than n characters.
// An absent column counts as length zero.
func LongerThan(column string, n int) Predicate {
	return func(r tabular.Record) bool {
		return utf8.RuneCountInString(r.Value(column)) > n
	}
}

// AllOf accepts a record only when every non-nil predicate does.
func AllOf(preds ...Predicate) Predicate {
	active := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return AcceptAll
	}
	return func(r tabular.Record) bool {
		for _, p := range active {
			if !p(r) {
				return false
			}
		}
		return true
	}
}
