package query

import (
	"github.com/alem-hub/school-results/internal/domain/grading"
	"github.com/alem-hub/school-results/internal/domain/result"
)

// SubjectTemplateDTO is the default subject list for a class.
type SubjectTemplateDTO struct {
	Class    string   `json:"class"`
	Category string   `json:"category"`
	Known    bool     `json:"known_class"`
	Subjects []string `json:"subjects"`
}

// SubjectTemplate returns the template for a class. Pure lookup, no I/O.
func SubjectTemplate(class string) SubjectTemplateDTO {
	return SubjectTemplateDTO{
		Class:    class,
		Category: string(result.CategoryOf(class)),
		Known:    result.IsKnownClass(class),
		Subjects: result.SubjectTemplate(class),
	}
}

// ReferenceDataDTO lists the static data clients need to build forms.
type ReferenceDataDTO struct {
	Classes     []string       `json:"classes"`
	Terms       []string       `json:"terms"`
	ResultTypes []string       `json:"result_types"`
	GradeBands  []grading.Band `json:"grade_bands"`
}

// ReferenceData returns classes, terms, result types and the active bands.
func ReferenceData(table *grading.Table) ReferenceDataDTO {
	classes := make([]string, len(result.ClassOptions))
	copy(classes, result.ClassOptions)
	return ReferenceDataDTO{
		Classes:     classes,
		Terms:       []string{result.TermFirst.String(), result.TermSecond.String(), result.TermThird.String()},
		ResultTypes: []string{result.TypeMidterm.String(), result.TypeExamination.String()},
		GradeBands:  table.Bands(),
	}
}
