package result

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/school-results/internal/domain/grading"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

func TestAggregate_ThreeSubjects(t *testing.T) {
	agg, err := NewAggregator(nil).Aggregate([]SubjectScore{
		{Name: "Math", Score: 80},
		{Name: "English", Score: 70},
		{Name: "Science", Score: 60},
	})
	require.NoError(t, err)

	assert.Equal(t, 210.0, agg.TotalScore)
	assert.Equal(t, 70.0, agg.AverageScore)
	assert.Equal(t, "B", agg.Grade)
	assert.Equal(t, "Very Good", agg.Remark)

	require.Len(t, agg.Subjects, 3)
	assert.Equal(t, "A", agg.Subjects[0].Grade)
	assert.Equal(t, "B", agg.Subjects[1].Grade)
	assert.Equal(t, "C", agg.Subjects[2].Grade)
	assert.Equal(t, "Math", agg.Subjects[0].Name, "subject order is preserved")
}

func TestAggregate_RejectsInvalidInput(t *testing.T) {
	a := NewAggregator(nil)

	tests := []struct {
		name     string
		subjects []SubjectScore
		field    string
	}{
		{"empty", nil, "subjects"},
		{"negative", []SubjectScore{{Name: "Math", Score: -1}}, "subjects[0].score"},
		{"above 100", []SubjectScore{{Name: "Math", Score: 50}, {Name: "Art", Score: 100.5}}, "subjects[1].score"},
		{"nan", []SubjectScore{{Name: "Math", Score: math.NaN()}}, "subjects[0].score"},
		{"blank name", []SubjectScore{{Name: "  ", Score: 50}}, "subjects[0].name"},
		{"three decimals", []SubjectScore{{Name: "Math", Score: 50}, {Name: "Art", Score: 70.125}}, "subjects[1].score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Aggregate(tt.subjects)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
			assert.Equal(t, tt.field, shared.FieldOf(err))
		})
	}
}

func TestAggregate_TotalIsSumOfScores(t *testing.T) {
	agg, err := NewAggregator(nil).Aggregate([]SubjectScore{
		{Name: "a", Score: 33.33}, {Name: "b", Score: 33.33}, {Name: "c", Score: 33.34},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, agg.TotalScore)
	assert.Equal(t, 33.33, agg.AverageScore)

	agg, err = NewAggregator(nil).Aggregate([]SubjectScore{{Name: "a", Score: 12.5}, {Name: "b", Score: 0.25}})
	require.NoError(t, err)
	assert.Equal(t, 12.75, agg.TotalScore)
}

func TestAggregate_AcceptsBounds(t *testing.T) {
	agg, err := NewAggregator(nil).Aggregate([]SubjectScore{{Name: "A", Score: 0}, {Name: "B", Score: 100}})
	require.NoError(t, err)
	assert.Equal(t, 50.0, agg.AverageScore)
	assert.Equal(t, "D", agg.Grade)
}

func TestAggregate_RoundsBeforeClassifying(t *testing.T) {
	// 449/6 = 74.8333... -> 74.83, which is still a B.
	agg, err := NewAggregator(nil).Aggregate([]SubjectScore{
		{Name: "a", Score: 75}, {Name: "b", Score: 75}, {Name: "c", Score: 75},
		{Name: "d", Score: 75}, {Name: "e", Score: 75}, {Name: "f", Score: 74},
	})
	require.NoError(t, err)
	assert.Equal(t, 74.83, agg.AverageScore)
	assert.Equal(t, "B", agg.Grade)

	// 299/4 = 74.75 exactly; rounding keeps it and it stays a B.
	agg, err = NewAggregator(nil).Aggregate([]SubjectScore{
		{Name: "a", Score: 75}, {Name: "b", Score: 75}, {Name: "c", Score: 75}, {Name: "d", Score: 74},
	})
	require.NoError(t, err)
	assert.Equal(t, 74.75, agg.AverageScore)
	assert.Equal(t, "B", agg.Grade)
}

func TestAggregate_RoundsHalfAwayFromZero(t *testing.T) {
	// 561/8 = 70.125 is exact in binary and must round up to 70.13.
	subjects := make([]SubjectScore, 8)
	scores := []float64{71, 71, 71, 71, 71, 70, 68, 68}
	for i, s := range scores {
		subjects[i] = SubjectScore{Name: string(rune('a' + i)), Score: s}
	}

	agg, err := NewAggregator(nil).Aggregate(subjects)
	require.NoError(t, err)
	assert.Equal(t, 561.0, agg.TotalScore)
	assert.Equal(t, 70.13, agg.AverageScore)
}

func TestAggregate_RandomScoreVectors(t *testing.T) {
	a := NewAggregator(nil)
	table := grading.DefaultTable()
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 2000; iter++ {
		n := 1 + rng.Intn(15)
		subjects := make([]SubjectScore, n)
		sum := 0
		for i := range subjects {
			score := rng.Intn(101)
			sum += score
			subjects[i] = SubjectScore{Name: "s", Score: float64(score)}
		}

		agg, err := a.Aggregate(subjects)
		require.NoError(t, err)

		// Integer reference: round(sum*100/n) half up, in hundredths.
		hundredths := (200*sum + n) / (2 * n)
		want := float64(hundredths) / 100

		assert.Equal(t, float64(sum), agg.TotalScore)
		assert.Equal(t, want, agg.AverageScore, "scores %v", subjects)
		assert.Equal(t, table.Classify(agg.AverageScore).Grade, agg.Grade)
	}
}

func TestAggregate_IsDeterministic(t *testing.T) {
	subjects := []SubjectScore{{Name: "Math", Score: 33.5}, {Name: "English", Score: 91.25}}
	a := NewAggregator(nil)

	first, err := a.Aggregate(subjects)
	require.NoError(t, err)
	second, err := a.Aggregate(subjects)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "", subjects[0].Grade, "input is not mutated")
}

func TestAggregate_UsesConfiguredTable(t *testing.T) {
	table, err := grading.NewTable([]grading.Band{
		{Min: 50, Max: 100, Grade: "P", Remark: "Pass"},
		{Min: 0, Max: 49, Grade: "N", Remark: "Not yet"},
	})
	require.NoError(t, err)

	agg, err := NewAggregator(table).Aggregate([]SubjectScore{{Name: "Math", Score: 49.5}})
	require.NoError(t, err)
	assert.Equal(t, "N", agg.Grade)
}
