package scale

import (
	"math"
	"os"
	"testing"

	"github.com/hupe1980/anneal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow(t *testing.T) {
	row := []float64{2, 4, 6, 10}
	lo, span := Row(row)

	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 8.0, span)
	assert.Equal(t, []float64{0, 0.25, 0.5, 1}, row)
}

func TestMinMaxRows_PerRow(t *testing.T) {
	rows := [][]float64{
		{1, 2, 3},
		{-10, 0, 10},
		{100, 50, 0},
	}

	degenerate, err := MinMaxRows(rows, ZeroRangeZero)
	require.NoError(t, err)
	assert.Equal(t, uint(0), degenerate.Count())

	assert.Equal(t, []float64{0, 0.5, 1}, rows[0])
	assert.Equal(t, []float64{0, 0.5, 1}, rows[1])
	assert.Equal(t, []float64{1, 0.5, 0}, rows[2])

	for _, row := range rows {
		assert.True(t, inUnitInterval(row))
	}
}

func TestMinMaxRows_ZeroRange(t *testing.T) {
	newRows := func() [][]float64 {
		return [][]float64{
			{1, 3},
			{5, 5},
			{7, 7},
		}
	}

	t.Run("Zero", func(t *testing.T) {
		rows := newRows()
		degenerate, err := MinMaxRows(rows, ZeroRangeZero)
		require.NoError(t, err)
		assert.Equal(t, uint(2), degenerate.Count())
		assert.True(t, degenerate.Test(1))
		assert.True(t, degenerate.Test(2))
		assert.Equal(t, []float64{0, 0}, rows[1])
		assert.Equal(t, []float64{0, 1}, rows[0])
	})

	t.Run("Reject", func(t *testing.T) {
		rows := newRows()
		_, err := MinMaxRows(rows, ZeroRangeReject)

		var zr *ZeroRangeError
		require.ErrorAs(t, err, &zr)
		assert.Equal(t, 1, zr.Row)
		assert.Equal(t, 5.0, zr.Value)
		// Nothing is rescaled when the table is rejected.
		assert.Equal(t, []float64{1, 3}, rows[0])
	})

	t.Run("Propagate", func(t *testing.T) {
		rows := newRows()
		degenerate, err := MinMaxRows(rows, ZeroRangePropagate)
		require.NoError(t, err)
		assert.Equal(t, uint(2), degenerate.Count())
		assert.True(t, math.IsNaN(rows[1][0]))
		assert.False(t, inUnitInterval(rows[1]))
	})
}

func TestParseZeroRangePolicy(t *testing.T) {
	for _, p := range []ZeroRangePolicy{ZeroRangeZero, ZeroRangeReject, ZeroRangePropagate} {
		got, err := ParseZeroRangePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParseZeroRangePolicy("")
	require.NoError(t, err)
	assert.Equal(t, ZeroRangeZero, got)

	_, err = ParseZeroRangePolicy("clamp")
	assert.Error(t, err)
}

func TestMinMaxRows_Fixture(t *testing.T) {
	f, err := os.Open("../../testdata/yeast_cell_cycle.tsv")
	require.NoError(t, err)
	defer f.Close()

	tbl, err := table.Read(f, '\t')
	require.NoError(t, err)

	_, err = MinMaxRows(tbl.Rows, ZeroRangeZero)
	require.NoError(t, err)

	for i, row := range tbl.Rows {
		assert.True(t, inUnitInterval(row), "row %d out of [0,1]", i)
	}

	exp5 := []float64{0.6989, 0.0000, 0.0968, 0.3333, 0.4301, 1.0000, 0.7419, 0.7419, 0.6022, 0.7634, 0.1720, 0.4301, 0.5161, 0.7634, 0.6989, 0.6559}
	exp7 := []float64{0.0803, 0.0000, 0.2867, 0.5849, 0.9679, 1.0000, 0.7775, 0.7156, 0.5505, 0.5459, 0.4518, 0.6193, 0.8440, 0.8532, 0.9335, 0.7752}

	for i := range exp5 {
		assert.InDelta(t, exp5[i], tbl.Rows[5][i], 1e-4, "row 5 column %d", i)
		assert.InDelta(t, exp7[i], tbl.Rows[7][i], 1e-4, "row 7 column %d", i)
	}
}

func inUnitInterval(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return true
}
