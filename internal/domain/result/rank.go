package result

import (
	"sort"
)

// ComputePosition ranks a candidate average against the averages of the
// other results in its cohort: 1 + the number strictly greater.
//
// Equal averages share a position and the next lower average skips the
// tied places (standard competition ranking): for [90, 80, 80, 70] a
// candidate of 80 is 2nd and a candidate of 60 is 5th. The caller must not
// include the candidate's own stored average in existing.
func ComputePosition(candidate float64, existing []float64) Position {
	greater := 0
	for _, avg := range existing {
		if avg > candidate {
			greater++
		}
	}
	return Position(greater + 1)
}

// Standing is one entry of a ranked cohort.
type Standing struct {
	ResultID     string   `json:"result_id"`
	StudentID    string   `json:"student_id"`
	StudentName  string   `json:"student_name"`
	AverageScore float64  `json:"average_score"`
	Position     Position `json:"position"`
}

// RankStandings sorts standings by average (highest first) and assigns
// positions with the same tie policy as ComputePosition. Ties are ordered
// by student name so the output is stable.
func RankStandings(standings []Standing) []Standing {
	out := make([]Standing, len(standings))
	copy(out, standings)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AverageScore != out[j].AverageScore {
			return out[i].AverageScore > out[j].AverageScore
		}
		return out[i].StudentName < out[j].StudentName
	})

	current := Position(1)
	for i := range out {
		if i > 0 && out[i].AverageScore == out[i-1].AverageScore {
			out[i].Position = out[i-1].Position
		} else {
			out[i].Position = current
		}
		current = Position(i + 2)
	}
	return out
}

// StandingsOf builds unranked standings from results.
func StandingsOf(results []*Result) []Standing {
	out := make([]Standing, len(results))
	for i, r := range results {
		out[i] = Standing{
			ResultID:     r.ID,
			StudentID:    r.StudentID,
			StudentName:  r.StudentName,
			AverageScore: r.AverageScore,
			Position:     r.Position,
		}
	}
	return out
}
