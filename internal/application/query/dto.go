// Package query contains read operations (CQRS - Queries).
package query

import (
	"time"

	"github.com/alem-hub/school-results/internal/domain/result"
)

// ResultDTO is the read model of a result.
type ResultDTO struct {
	ID              string                `json:"id"`
	StudentID       string                `json:"student_id"`
	StudentName     string                `json:"student_name"`
	AdmissionNumber string                `json:"admission_number,omitempty"`
	Class           string                `json:"class"`
	Term            string                `json:"term"`
	Session         string                `json:"session"`
	ResultType      string                `json:"result_type"`
	Subjects        []result.SubjectScore `json:"subjects"`

	TotalScore    float64 `json:"total_score"`
	AverageScore  float64 `json:"average_score"`
	OverallGrade  string  `json:"overall_grade"`
	Remark        string  `json:"remark"`
	Position      *int    `json:"position"`
	PositionLabel string  `json:"position_label,omitempty"`

	TeacherComment   string `json:"teacher_comment,omitempty"`
	PrincipalComment string `json:"principal_comment,omitempty"`

	Status      string     `json:"status"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedBy   string     `json:"created_by"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ToResultDTO maps a domain result to its read model.
func ToResultDTO(r *result.Result) ResultDTO {
	dto := ResultDTO{
		ID:               r.ID,
		StudentID:        r.StudentID,
		StudentName:      r.StudentName,
		AdmissionNumber:  r.AdmissionNumber,
		Class:            r.Cohort.Class,
		Term:             r.Cohort.Term.String(),
		Session:          r.Cohort.Session.String(),
		ResultType:       r.Type.String(),
		Subjects:         r.Subjects,
		TotalScore:       r.TotalScore,
		AverageScore:     r.AverageScore,
		OverallGrade:     r.OverallGrade,
		Remark:           r.Remark,
		TeacherComment:   r.TeacherComment,
		PrincipalComment: r.PrincipalComment,
		Status:           string(r.Status()),
		Published:        r.Published,
		PublishedAt:      r.PublishedAt,
		CreatedBy:        r.CreatedBy,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.Position.IsRanked() {
		p := int(r.Position)
		dto.Position = &p
		dto.PositionLabel = r.Position.Ordinal()
	}
	if dto.Subjects == nil {
		dto.Subjects = []result.SubjectScore{}
	}
	return dto
}

// ToResultDTOs maps a list of results.
func ToResultDTOs(results []*result.Result) []ResultDTO {
	out := make([]ResultDTO, len(results))
	for i, r := range results {
		out[i] = ToResultDTO(r)
	}
	return out
}
