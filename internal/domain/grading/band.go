// Package grading maps numeric averages to letter grades using an ordered
// band table supplied by configuration.
package grading

import (
	"fmt"
	"math"
	"sort"

	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BAND
// ══════════════════════════════════════════════════════════════════════════════

// Band is a contiguous score range mapped to a grade and remark.
// Min and Max are both inclusive as written in the table.
type Band struct {
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Grade  string  `json:"grade" yaml:"grade"`
	Remark string  `json:"remark" yaml:"remark"`
}

// Classification is the outcome of classifying a score.
type Classification struct {
	Grade  string `json:"grade"`
	Remark string `json:"remark"`
}

// ══════════════════════════════════════════════════════════════════════════════
// TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Lowest and highest representable scores.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// maxGap is the largest allowed distance between a band's Min and the Max
// of the band directly below it. Integer tables (A 75-100, B 65-74) leave a
// gap of 1; real-valued averages inside that gap belong to the lower band.
const maxGap = 1.0

// Table is an immutable, validated band table ordered from the highest band
// to the lowest.
type Table struct {
	bands []Band
}

// DefaultBands returns the default six-band table.
func DefaultBands() []Band {
	return []Band{
		{Min: 75, Max: 100, Grade: "A", Remark: "Excellent"},
		{Min: 65, Max: 74, Grade: "B", Remark: "Very Good"},
		{Min: 55, Max: 64, Grade: "C", Remark: "Good"},
		{Min: 45, Max: 54, Grade: "D", Remark: "Fair"},
		{Min: 40, Max: 44, Grade: "E", Remark: "Pass"},
		{Min: 0, Max: 39, Grade: "F", Remark: "Fail"},
	}
}

// DefaultTable returns the validated default table.
func DefaultTable() *Table {
	t, err := NewTable(DefaultBands())
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable validates the bands and returns a Table. Input order does not
// matter; bands are sorted from highest to lowest.
//
// A valid table covers [0,100] without overlap: the top band ends at 100,
// the bottom band starts at 0, every band has Min <= Max and a non-empty
// grade, and each band starts no more than one point above the Max of the
// band below it.
func NewTable(bands []Band) (*Table, error) {
	if len(bands) == 0 {
		return nil, bandError("table has no bands")
	}

	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Min > sorted[j].Min
	})

	seen := make(map[string]bool, len(sorted))
	for i, b := range sorted {
		if b.Grade == "" {
			return nil, bandError(fmt.Sprintf("band %d has an empty grade", i))
		}
		if seen[b.Grade] {
			return nil, bandError(fmt.Sprintf("grade %q appears twice", b.Grade))
		}
		seen[b.Grade] = true

		if isBad(b.Min) || isBad(b.Max) || b.Min > b.Max {
			return nil, bandError(fmt.Sprintf("band %s has invalid range %v-%v", b.Grade, b.Min, b.Max))
		}
		if i == 0 {
			continue
		}
		upper := sorted[i-1]
		if b.Max >= upper.Min {
			return nil, bandError(fmt.Sprintf("bands %s and %s overlap", upper.Grade, b.Grade))
		}
		if upper.Min-b.Max > maxGap {
			return nil, bandError(fmt.Sprintf("gap between bands %s and %s", upper.Grade, b.Grade))
		}
	}

	if sorted[0].Max != MaxScore {
		return nil, bandError("top band must end at 100")
	}
	if sorted[len(sorted)-1].Min != MinScore {
		return nil, bandError("bottom band must start at 0")
	}

	return &Table{bands: sorted}, nil
}

// Classify maps an average to its band. Bands are checked from highest to
// lowest and the first one whose Min is not above the score wins, so
// fractional averages between two integer bands fall into the lower one.
// NaN, infinities and values outside [0,100] get the lowest band.
func (t *Table) Classify(average float64) Classification {
	lowest := t.bands[len(t.bands)-1]
	if isBad(average) || average < MinScore || average > MaxScore {
		return Classification{Grade: lowest.Grade, Remark: lowest.Remark}
	}
	for _, b := range t.bands {
		if average >= b.Min {
			return Classification{Grade: b.Grade, Remark: b.Remark}
		}
	}
	return Classification{Grade: lowest.Grade, Remark: lowest.Remark}
}

// Bands returns a copy of the bands, highest first.
func (t *Table) Bands() []Band {
	out := make([]Band, len(t.bands))
	copy(out, t.bands)
	return out
}

// Grades returns the grade letters, highest first.
func (t *Table) Grades() []string {
	grades := make([]string, len(t.bands))
	for i, b := range t.bands {
		grades[i] = b.Grade
	}
	return grades
}

// FailingGrade returns the grade of the lowest band.
func (t *Table) FailingGrade() string {
	return t.bands[len(t.bands)-1].Grade
}

// IsPass reports whether the grade is above the lowest band.
func (t *Table) IsPass(grade string) bool {
	return grade != t.FailingGrade()
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func bandError(msg string) error {
	return shared.WrapError("grading", "NewTable", shared.ErrValidation, msg, shared.ErrInvalidBandTable)
}
