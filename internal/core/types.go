package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvmerge/internal/profile"
	"github.com/JonMunkholm/csvmerge/internal/tabular"
)

// MergeRequest describes one merge run.
type MergeRequest struct {
	Profile   string            // Profile name; empty uses the configured default
	Overrides profile.Overrides // Per-run settings layered over the profile
	Sources   []NamedSource     // Inputs, folded in this order
}

// SourceStats counts what happened to one input.
type SourceStats struct {
	Name     string `json:"name"`
	Bytes    int64  `json:"bytes"`
	Rows     int    `json:"rows"`     // Data rows read, including skipped ones
	Accepted int    `json:"accepted"` // Rows folded into the result
	NoKey    int    `json:"noKey"`    // Rows dropped for a missing or blank key
	Filtered int    `json:"filtered"` // Rows rejected by the profile filter
	Skipped  int    `json:"skipped"`  // Malformed rows skipped
}

// Stats summarizes a run.
type Stats struct {
	Sources  []SourceStats `json:"sources"`
	Totals   SourceStats   `json:"totals"`
	RowsOut  int           `json:"rowsOut"`
	Columns  int           `json:"columns"`
	Duration time.Duration `json:"durationNs"`
}

func (s *Stats) add(src SourceStats) {
	s.Sources = append(s.Sources, src)
	s.Totals.Bytes += src.Bytes
	s.Totals.Rows += src.Rows
	s.Totals.Accepted += src.Accepted
	s.Totals.NoKey += src.NoKey
	s.Totals.Filtered += src.Filtered
	s.Totals.Skipped += src.Skipped
}

// MergeResult is the merged table plus what is needed to write it out.
type MergeResult struct {
	RunID     uuid.UUID
	Profile   string
	KeyColumn string
	Filter    string
	Dialect   tabular.Dialect
	Columns   []string
	Records   []tabular.Record
	Stats     Stats
}

// Preview is a JSON-friendly summary of a run with its first rows.
type Preview struct {
	RunID     uuid.UUID  `json:"runId"`
	Profile   string     `json:"profile"`
	KeyColumn string     `json:"keyColumn"`
	Filter    string     `json:"filter,omitempty"`
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
	Stats     Stats      `json:"stats"`
}

// Preview returns the first n merged rows aligned to the column universe.
// Absent cells come back empty, as they would be written.
func (r *MergeResult) Preview(n int) Preview {
	if n < 0 || n > len(r.Records) {
		n = len(r.Records)
	}
	rows := make([][]string, n)
	for i, rec := range r.Records[:n] {
		row := make([]string, len(r.Columns))
		for j, col := range r.Columns {
			row[j] = rec.Value(col)
		}
		rows[i] = row
	}

	columns := r.Columns
	if columns == nil {
		columns = []string{}
	}
	return Preview{
		RunID:     r.RunID,
		Profile:   r.Profile,
		KeyColumn: r.KeyColumn,
		Filter:    r.Filter,
		Columns:   columns,
		Rows:      rows,
		Truncated: n < len(r.Records),
		Stats:     r.Stats,
	}
}
