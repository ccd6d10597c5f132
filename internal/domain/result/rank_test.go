package result

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePosition(t *testing.T) {
	cohort := []float64{90, 80, 80, 70}

	tests := []struct {
		name      string
		candidate float64
		existing  []float64
		want      Position
	}{
		{"tie shares position", 80, cohort, 2},
		{"above everyone", 95, cohort, 1},
		{"below everyone", 60, cohort, 5},
		{"equal to top", 90, cohort, 1},
		{"between tie and bottom", 75, cohort, 4},
		{"empty cohort", 42, nil, 1},
		{"unordered input", 80, []float64{70, 80, 90, 80}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePosition(tt.candidate, tt.existing))
		})
	}
}

func TestRankStandings_CompetitionRanking(t *testing.T) {
	ranked := RankStandings([]Standing{
		{ResultID: "d", StudentName: "Dayo", AverageScore: 70},
		{ResultID: "b", StudentName: "Bola", AverageScore: 80},
		{ResultID: "a", StudentName: "Ada", AverageScore: 90},
		{ResultID: "c", StudentName: "Chidi", AverageScore: 80},
	})

	ids := make([]string, len(ranked))
	positions := make([]Position, len(ranked))
	for i, s := range ranked {
		ids[i] = s.ResultID
		positions[i] = s.Position
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, []Position{1, 2, 2, 4}, positions)
}

func TestRankStandings_MultipleFirstPlaces(t *testing.T) {
	ranked := RankStandings([]Standing{
		{ResultID: "a", AverageScore: 88},
		{ResultID: "b", AverageScore: 88},
		{ResultID: "c", AverageScore: 60},
	})

	assert.Equal(t, Position(1), ranked[0].Position)
	assert.Equal(t, Position(1), ranked[1].Position)
	assert.Equal(t, Position(3), ranked[2].Position)
}

func TestRankStandings_AgreesWithComputePosition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(30)
		standings := make([]Standing, n)
		for i := range standings {
			standings[i] = Standing{ResultID: string(rune('A' + i)), AverageScore: float64(40 + rng.Intn(20))}
		}

		for _, s := range RankStandings(standings) {
			var others []float64
			for _, o := range standings {
				if o.ResultID != s.ResultID {
					others = append(others, o.AverageScore)
				}
			}
			assert.Equal(t, ComputePosition(s.AverageScore, others), s.Position)
		}
	}
}

func TestRankStandings_DoesNotMutateInput(t *testing.T) {
	in := []Standing{{ResultID: "a", AverageScore: 10}, {ResultID: "b", AverageScore: 20}}
	RankStandings(in)

	assert.Equal(t, "a", in[0].ResultID)
	assert.Equal(t, Unranked, in[0].Position)
}
