package grading

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/school-results/internal/domain/shared"
)

func TestDefaultTable_Boundaries(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		score  float64
		grade  string
		remark string
	}{
		{100, "A", "Excellent"},
		{75, "A", "Excellent"},
		{74, "B", "Very Good"},
		{65, "B", "Very Good"},
		{64, "C", "Good"},
		{55, "C", "Good"},
		{54, "D", "Fair"},
		{45, "D", "Fair"},
		{44, "E", "Pass"},
		{40, "E", "Pass"},
		{39, "F", "Fail"},
		{0, "F", "Fail"},
	}

	for _, tt := range tests {
		got := table.Classify(tt.score)
		assert.Equal(t, tt.grade, got.Grade, "score %v", tt.score)
		assert.Equal(t, tt.remark, got.Remark, "score %v", tt.score)
	}
}

func TestDefaultTable_EveryIntegerMatchesExactlyOneBand(t *testing.T) {
	table := DefaultTable()
	bands := table.Bands()

	for score := 0; score <= 100; score++ {
		matches := 0
		for _, b := range bands {
			if float64(score) >= b.Min && float64(score) <= b.Max {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "score %d", score)
		assert.NotEmpty(t, table.Classify(float64(score)).Grade)
	}
}

func TestClassify_FractionalAveragesFallIntoLowerBand(t *testing.T) {
	table := DefaultTable()

	assert.Equal(t, "B", table.Classify(74.99).Grade)
	assert.Equal(t, "B", table.Classify(74.5).Grade)
	assert.Equal(t, "E", table.Classify(44.01).Grade)
	assert.Equal(t, "F", table.Classify(39.99).Grade)
	assert.Equal(t, "A", table.Classify(99.5).Grade)
}

func TestClassify_OutOfRangeFallsBackToLowestBand(t *testing.T) {
	table := DefaultTable()

	for _, v := range []float64{-0.01, -50, 100.01, 1000, math.NaN(), math.Inf(1), math.Inf(-1)} {
		got := table.Classify(v)
		assert.Equal(t, "F", got.Grade, "value %v", v)
		assert.Equal(t, "Fail", got.Remark, "value %v", v)
	}
}

func TestNewTable_SortsInput(t *testing.T) {
	bands := DefaultBands()
	reversed := make([]Band, len(bands))
	for i := range bands {
		reversed[len(bands)-1-i] = bands[i]
	}

	table, err := NewTable(reversed)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, table.Grades())
	assert.Equal(t, "F", table.FailingGrade())
	assert.True(t, table.IsPass("E"))
	assert.False(t, table.IsPass("F"))
}

func TestNewTable_RealValuedTable(t *testing.T) {
	table, err := NewTable([]Band{
		{Min: 50, Max: 100, Grade: "P", Remark: "Pass"},
		{Min: 0, Max: 49.99, Grade: "N", Remark: "Not yet"},
	})
	require.NoError(t, err)

	assert.Equal(t, "P", table.Classify(50).Grade)
	assert.Equal(t, "N", table.Classify(49.995).Grade)
}

func TestNewTable_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		bands []Band
	}{
		{"empty", nil},
		{"overlap", []Band{
			{Min: 50, Max: 100, Grade: "A"},
			{Min: 0, Max: 50, Grade: "F"},
		}},
		{"gap", []Band{
			{Min: 60, Max: 100, Grade: "A"},
			{Min: 0, Max: 50, Grade: "F"},
		}},
		{"top not 100", []Band{
			{Min: 50, Max: 90, Grade: "A"},
			{Min: 0, Max: 49, Grade: "F"},
		}},
		{"bottom not 0", []Band{
			{Min: 50, Max: 100, Grade: "A"},
			{Min: 10, Max: 49, Grade: "F"},
		}},
		{"empty grade", []Band{
			{Min: 0, Max: 100, Grade: ""},
		}},
		{"duplicate grade", []Band{
			{Min: 50, Max: 100, Grade: "A"},
			{Min: 0, Max: 49, Grade: "A"},
		}},
		{"inverted", []Band{
			{Min: 100, Max: 0, Grade: "A"},
		}},
		{"nan", []Band{
			{Min: math.NaN(), Max: 100, Grade: "A"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.bands)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrInvalidBandTable))
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestBands_ReturnsCopy(t *testing.T) {
	table := DefaultTable()
	bands := table.Bands()
	bands[0].Grade = "Z"

	assert.Equal(t, "A", table.Classify(90).Grade)
}
