package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func equilateralTriangle() *Mesh {
	return &Mesh{
		CellType: Triangle,
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {0.5, math.Sqrt(3) / 2, 0}},
		Cells:    []Cell{{Vertices: []int{0, 1, 2}}},
	}
}

func rightTriangle() *Mesh {
	return &Mesh{
		CellType: Triangle,
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Cells:    []Cell{{Vertices: []int{0, 1, 2}}},
	}
}

func regularTetrahedron() *Mesh {
	return &Mesh{
		CellType: Tetrahedron,
		Vertices: [][3]float64{{1, 1, 1}, {1, -1, -1}, {-1, 1, -1}, {-1, -1, 1}},
		Cells:    []Cell{{Vertices: []int{0, 1, 2, 3}}},
	}
}

func TestQualityEquilateralTriangle(t *testing.T) {
	m := equilateralTriangle()

	q, err := MinSkewness(m)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q, 1e-12)

	q, err = MinMaximumAngle(m)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q, 1e-12)

	q, err = MinRadiusRatios(m)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q, 1e-12)

	q, err = MinConditionNumber(m)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(6)/4, q, 1e-12)
}

func TestQualityRightTriangle(t *testing.T) {
	m := rightTriangle()

	q, err := MinSkewness(m)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, q, 1e-12)

	q, err = MinMaximumAngle(m)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, q, 1e-12)

	q, err = MinRadiusRatios(m)
	require.NoError(t, err)
	assert.InDelta(t, 2/(2+math.Sqrt2)*2/math.Sqrt2, q, 1e-12)

	q, err = MinConditionNumber(m)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2/2, q, 1e-12)
}

func TestQualityRegularTetrahedron(t *testing.T) {
	m := regularTetrahedron()

	q, err := MinSkewness(m)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q, 1e-12)

	q, err = MinMaximumAngle(m)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q, 1e-12)

	q, err = MinRadiusRatios(m)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q, 1e-10)

	q, err = MinConditionNumber(m)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2/3, q, 1e-12)
}

func TestQualityMinVersusAverage(t *testing.T) {
	// One equilateral and one right triangle sharing no structure.
	m := &Mesh{
		CellType: Triangle,
		Vertices: [][3]float64{
			{0, 0, 0}, {1, 0, 0}, {0.5, math.Sqrt(3) / 2, 0},
			{2, 0, 0}, {3, 0, 0}, {2, 1, 0},
		},
		Cells: []Cell{
			{Vertices: []int{0, 1, 2}},
			{Vertices: []int{3, 4, 5}},
		},
	}

	min, err := MinSkewness(m)
	require.NoError(t, err)
	avg, err := AvgSkewness(m)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, min, 1e-12)
	assert.InDelta(t, 0.875, avg, 1e-12)
	assert.Greater(t, avg, min)
}

func TestQualityDetectsDistortion(t *testing.T) {
	good := equilateralTriangle()
	bad := &Mesh{
		CellType: Triangle,
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {0.5, 0.01, 0}},
		Cells:    []Cell{{Vertices: []int{0, 1, 2}}},
	}

	for name, f := range map[string]func(*Mesh) (float64, error){
		"skewness":         MinSkewness,
		"maximum_angle":    MinMaximumAngle,
		"radius_ratios":    MinRadiusRatios,
		"condition_number": MinConditionNumber,
	} {
		qGood, err := f(good)
		require.NoError(t, err, name)
		qBad, err := f(bad)
		require.NoError(t, err, name)
		assert.Greater(t, qGood, qBad, name)
		assert.Less(t, qBad, 0.2, name)
	}
}

func TestQualityRegularMeshIsUniform(t *testing.T) {
	m, err := RegularMesh(4, 1, 1)
	require.NoError(t, err)

	min, err := MinSkewness(m)
	require.NoError(t, err)
	avg, err := AvgSkewness(m)
	require.NoError(t, err)
	assert.InDelta(t, min, avg, 1e-12)
	assert.InDelta(t, 0.75, min, 1e-12)
}

func TestQualityUnsupportedCellType(t *testing.T) {
	m := &Mesh{
		CellType: Line,
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}},
		Cells:    []Cell{{Vertices: []int{0, 1}}},
	}
	_, err := MinSkewness(m)
	require.Error(t, err)
	_, err = MinConditionNumber(m)
	require.Error(t, err)
}
