// Package result contains the academic result model: subject scores, the
// aggregate computed from them, and the cohort a result is ranked in.
package result

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Term is one of the three terms of an academic session.
type Term string

const (
	TermFirst  Term = "First"
	TermSecond Term = "Second"
	TermThird  Term = "Third"
)

// IsValid checks the term against the known values.
func (t Term) IsValid() bool {
	switch t {
	case TermFirst, TermSecond, TermThird:
		return true
	}
	return false
}

// String returns the term name.
func (t Term) String() string { return string(t) }

// Type distinguishes midterm reports from end-of-term examinations.
type Type string

const (
	TypeMidterm     Type = "Midterm"
	TypeExamination Type = "Examination"
)

// IsValid checks the result type against the known values.
func (t Type) IsValid() bool {
	return t == TypeMidterm || t == TypeExamination
}

// String returns the type name.
func (t Type) String() string { return string(t) }

// Session is an academic year written as "YYYY/YYYY", e.g. "2024/2025".
type Session string

var sessionRegex = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

// IsValid checks the format and that the second year follows the first.
func (s Session) IsValid() bool {
	m := sessionRegex.FindStringSubmatch(string(s))
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

// String returns the session as written.
func (s Session) String() string { return string(s) }

// Position is the 1-based standing of a result in its cohort.
// Zero means the position has not been computed.
type Position int

// Unranked is the zero position.
const Unranked Position = 0

// IsRanked reports whether the position was computed.
func (p Position) IsRanked() bool { return p > 0 }

// Ordinal formats the position as "1st", "2nd", "3rd", "11th", "22nd".
func (p Position) Ordinal() string {
	if !p.IsRanked() {
		return ""
	}
	n := int(p)
	switch {
	case n%10 == 1 && n%100 != 11:
		return strconv.Itoa(n) + "st"
	case n%10 == 2 && n%100 != 12:
		return strconv.Itoa(n) + "nd"
	case n%10 == 3 && n%100 != 13:
		return strconv.Itoa(n) + "rd"
	default:
		return strconv.Itoa(n) + "th"
	}
}

// Status is the lifecycle state of a result.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ══════════════════════════════════════════════════════════════════════════════
// COHORT
// ══════════════════════════════════════════════════════════════════════════════

// Cohort identifies the population a result is ranked against.
type Cohort struct {
	Class   string  `json:"class"`
	Term    Term    `json:"term"`
	Session Session `json:"session"`
}

// NewCohort builds and validates a cohort key.
func NewCohort(class string, term Term, session Session) (Cohort, error) {
	c := Cohort{Class: strings.TrimSpace(class), Term: term, Session: session}
	if err := c.Validate(); err != nil {
		return Cohort{}, err
	}
	return c, nil
}

// Validate checks every component of the cohort.
func (c Cohort) Validate() error {
	if c.Class == "" {
		return shared.NewValidationError("result", "Validate", "class", "class is required")
	}
	if !c.Term.IsValid() {
		return shared.NewValidationError("result", "Validate", "term", "term must be First, Second or Third")
	}
	if !c.Session.IsValid() {
		return shared.NewValidationError("result", "Validate", "session", "session must look like 2024/2025")
	}
	return nil
}

// Key returns a stable string key, used for locks, caches and indexes.
func (c Cohort) Key() string {
	return c.Class + "|" + string(c.Term) + "|" + string(c.Session)
}

// String implements fmt.Stringer.
func (c Cohort) String() string {
	return fmt.Sprintf("%s %s term %s", c.Class, c.Term, c.Session)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT SCORE
// ══════════════════════════════════════════════════════════════════════════════

// SubjectScore is the score for one subject. Grade and Remark are derived
// by the aggregator and never taken from input.
type SubjectScore struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Grade  string  `json:"grade,omitempty"`
	Remark string  `json:"remark,omitempty"`
}

// ValidateSubjects checks that the list is non-empty, every subject has a
// name and every score is a finite number in [0,100] with at most two
// decimal places.
func ValidateSubjects(subjects []SubjectScore) error {
	if len(subjects) == 0 {
		return shared.NewValidationError("result", "Validate", "subjects", "at least one subject is required")
	}
	for i, s := range subjects {
		field := fmt.Sprintf("subjects[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			return shared.NewValidationError("result", "Validate", field+".name", "subject name is required")
		}
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) || s.Score < 0 || s.Score > 100 {
			return shared.NewValidationError("result", "Validate", field+".score",
				fmt.Sprintf("score %v must be between 0 and 100", s.Score))
		}
		if !hasTwoDecimals(s.Score) {
			return shared.NewValidationError("result", "Validate", field+".score",
				fmt.Sprintf("score %v has more than two decimal places", s.Score))
		}
	}
	return nil
}

// hasTwoDecimals tolerates the binary error of values like 33.33.
func hasTwoDecimals(v float64) bool {
	cents := v * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT
// ══════════════════════════════════════════════════════════════════════════════

// Result is one student's graded report for a cohort.
type Result struct {
	ID              string
	StudentID       string
	StudentName     string
	AdmissionNumber string
	Cohort          Cohort
	Type            Type
	Subjects        []SubjectScore

	TotalScore   float64
	AverageScore float64
	OverallGrade string
	Remark       string
	Position     Position

	TeacherComment   string
	PrincipalComment string

	Published      bool
	PublishedAt    *time.Time
	CreatedBy      string
	IdempotencyKey string
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewResultParams carries the caller-provided fields of a new result.
type NewResultParams struct {
	StudentID        string
	StudentName      string
	AdmissionNumber  string
	Cohort           Cohort
	Type             Type
	TeacherComment   string
	PrincipalComment string
	CreatedBy        string
	IdempotencyKey   string
}

// NewResult creates a draft result from computed aggregate values.
// Position is assigned separately by the caller.
func NewResult(p NewResultParams, agg Aggregation, now time.Time) (*Result, error) {
	if strings.TrimSpace(p.StudentID) == "" {
		return nil, shared.NewValidationError("result", "New", "student_id", "student is required")
	}
	if strings.TrimSpace(p.StudentName) == "" {
		return nil, shared.NewValidationError("result", "New", "student_name", "student name is required")
	}
	if err := p.Cohort.Validate(); err != nil {
		return nil, err
	}
	if !p.Type.IsValid() {
		return nil, shared.NewValidationError("result", "New", "result_type", "result type must be Midterm or Examination")
	}
	if p.CreatedBy == "" {
		return nil, shared.NewValidationError("result", "New", "created_by", "creator is required")
	}

	r := &Result{
		ID:               uuid.New().String(),
		StudentID:        p.StudentID,
		StudentName:      strings.TrimSpace(p.StudentName),
		AdmissionNumber:  strings.TrimSpace(p.AdmissionNumber),
		Cohort:           p.Cohort,
		Type:             p.Type,
		TeacherComment:   p.TeacherComment,
		PrincipalComment: p.PrincipalComment,
		CreatedBy:        p.CreatedBy,
		IdempotencyKey:   p.IdempotencyKey,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.applyAggregation(agg)
	return r, nil
}

// Status returns the lifecycle state.
func (r *Result) Status() Status {
	if r.Published {
		return StatusPublished
	}
	return StatusDraft
}

// ApplyScores replaces the subjects and derived totals. Scores of a
// published result are frozen.
func (r *Result) ApplyScores(agg Aggregation, now time.Time) error {
	if r.Published {
		return shared.ErrResultPublished
	}
	r.applyAggregation(agg)
	r.touch(now)
	return nil
}

// SetComments updates the free-text comments. Allowed in any state.
func (r *Result) SetComments(teacher, principal *string, now time.Time) {
	if teacher != nil {
		r.TeacherComment = *teacher
	}
	if principal != nil {
		r.PrincipalComment = *principal
	}
	r.touch(now)
}

// AssignPosition records a freshly computed position.
func (r *Result) AssignPosition(p Position) {
	r.Position = p
}

// Publish moves the result to the terminal published state.
func (r *Result) Publish(now time.Time) error {
	if r.Published {
		return shared.ErrAlreadyPublished
	}
	r.Published = true
	r.PublishedAt = &now
	r.touch(now)
	return nil
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	c := *r
	c.Subjects = make([]SubjectScore, len(r.Subjects))
	copy(c.Subjects, r.Subjects)
	if r.PublishedAt != nil {
		t := *r.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

func (r *Result) applyAggregation(agg Aggregation) {
	r.Subjects = agg.Subjects
	r.TotalScore = agg.TotalScore
	r.AverageScore = agg.AverageScore
	r.OverallGrade = agg.Grade
	r.Remark = agg.Remark
}

func (r *Result) touch(now time.Time) {
	r.UpdatedAt = now
}
