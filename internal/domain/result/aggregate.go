package result

import (
	"math"

	"github.com/alem-hub/school-results/internal/domain/grading"
)

// Aggregation is the computed outcome of a set of subject scores.
type Aggregation struct {
	Subjects     []SubjectScore
	TotalScore   float64
	AverageScore float64
	Grade        string
	Remark       string
}

// Aggregator turns subject scores into totals and an overall grade.
// It is a pure function of its input and the band table.
type Aggregator struct {
	table *grading.Table
}

// NewAggregator creates an Aggregator. A nil table means the default one.
func NewAggregator(table *grading.Table) *Aggregator {
	if table == nil {
		table = grading.DefaultTable()
	}
	return &Aggregator{table: table}
}

// Table returns the band table in use.
func (a *Aggregator) Table() *grading.Table {
	return a.table
}

// Aggregate validates the subjects and computes total, average and grade.
//
// The average is rounded to two decimals half away from zero before it is
// classified: a borderline average is graded by its two-decimal value.
// Scores carry at most two decimals, so rounding the total only drops
// float noise.
func (a *Aggregator) Aggregate(subjects []SubjectScore) (Aggregation, error) {
	if err := ValidateSubjects(subjects); err != nil {
		return Aggregation{}, err
	}

	scored := make([]SubjectScore, len(subjects))
	var total float64
	for i, s := range subjects {
		c := a.table.Classify(s.Score)
		scored[i] = SubjectScore{Name: s.Name, Score: s.Score, Grade: c.Grade, Remark: c.Remark}
		total += s.Score
	}

	average := roundedAverage(total, len(subjects))
	overall := a.table.Classify(average)

	return Aggregation{
		Subjects:     scored,
		TotalScore:   Round2(total),
		AverageScore: average,
		Grade:        overall.Grade,
		Remark:       overall.Remark,
	}, nil
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundedAverage scales before dividing so integer totals produce an exact
// quotient in hundredths and exact halves round away from zero.
func roundedAverage(total float64, n int) float64 {
	return math.Round(total*100/float64(n)) / 100
}
