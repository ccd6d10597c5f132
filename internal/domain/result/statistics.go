package result

import (
	"sort"

	"github.com/alem-hub/school-results/internal/domain/grading"
)

// DefaultTopPerformers is how many standings ClassStatistics keeps.
const DefaultTopPerformers = 5

// SubjectStatistics summarizes one subject across a cohort.
type SubjectStatistics struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
}

// ClassStatistics summarizes the results of one cohort.
type ClassStatistics struct {
	Cohort            Cohort              `json:"cohort"`
	Count             int                 `json:"count"`
	ClassAverage      float64             `json:"class_average"`
	HighestAverage    float64             `json:"highest_average"`
	LowestAverage     float64             `json:"lowest_average"`
	PassRate          float64             `json:"pass_rate"`
	GradeDistribution map[string]int      `json:"grade_distribution"`
	TopPerformers     []Standing          `json:"top_performers"`
	Subjects          []SubjectStatistics `json:"subjects"`
}

// ComputeStatistics aggregates results of one cohort. Every grade of the
// table appears in the distribution, including zero counts. A result
// passes when its grade is above the lowest band. Subjects are listed in
// order of first appearance.
func ComputeStatistics(cohort Cohort, results []*Result, table *grading.Table, top int) ClassStatistics {
	if top <= 0 {
		top = DefaultTopPerformers
	}

	stats := ClassStatistics{
		Cohort:            cohort,
		Count:             len(results),
		GradeDistribution: make(map[string]int),
		TopPerformers:     []Standing{},
		Subjects:          []SubjectStatistics{},
	}
	for _, g := range table.Grades() {
		stats.GradeDistribution[g] = 0
	}
	if len(results) == 0 {
		return stats
	}

	var sum float64
	passed := 0
	stats.HighestAverage = results[0].AverageScore
	stats.LowestAverage = results[0].AverageScore

	type acc struct {
		SubjectStatistics
		total float64
	}
	bySubject := make(map[string]*acc)
	var order []string

	for _, r := range results {
		sum += r.AverageScore
		if r.AverageScore > stats.HighestAverage {
			stats.HighestAverage = r.AverageScore
		}
		if r.AverageScore < stats.LowestAverage {
			stats.LowestAverage = r.AverageScore
		}

		grade := r.OverallGrade
		if grade == "" {
			grade = table.Classify(r.AverageScore).Grade
		}
		stats.GradeDistribution[grade]++
		if table.IsPass(grade) {
			passed++
		}

		for _, s := range r.Subjects {
			a, ok := bySubject[s.Name]
			if !ok {
				a = &acc{SubjectStatistics: SubjectStatistics{Name: s.Name, Highest: s.Score, Lowest: s.Score}}
				bySubject[s.Name] = a
				order = append(order, s.Name)
			}
			a.Count++
			a.total += s.Score
			if s.Score > a.Highest {
				a.Highest = s.Score
			}
			if s.Score < a.Lowest {
				a.Lowest = s.Score
			}
		}
	}

	n := float64(len(results))
	stats.ClassAverage = Round2(sum / n)
	stats.PassRate = Round2(float64(passed) / n * 100)

	ranked := RankStandings(StandingsOf(results))
	if len(ranked) > top {
		ranked = ranked[:top]
	}
	stats.TopPerformers = ranked

	for _, name := range order {
		a := bySubject[name]
		a.Average = Round2(a.total / float64(a.Count))
		stats.Subjects = append(stats.Subjects, a.SubjectStatistics)
	}

	return stats
}

// SortByPosition orders results by stored position, unranked last.
func SortByPosition(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		pi, pj := results[i].Position, results[j].Position
		if pi.IsRanked() != pj.IsRanked() {
			return pi.IsRanked()
		}
		if pi != pj {
			return pi < pj
		}
		return results[i].StudentName < results[j].StudentName
	})
}
