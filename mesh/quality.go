package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Element quality measures. All measures map into [0, 1], where 1 is
// attained by the perfect (equilateral) element and 0 by degenerate
// ones. The optimal angle is the one of the equilateral element:
// pi/3 for triangle angles, acos(1/3) for tetrahedral dihedral angles.

type vec3 = [3]float64

func sub(a, b vec3) vec3 {
	return vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot(a, b vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b vec3) vec3 {
	return vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(a vec3) float64 {
	return math.Sqrt(dot(a, a))
}

func normalize(a vec3) vec3 {
	n := norm(a)
	if n == 0 {
		return a
	}
	return vec3{a[0] / n, a[1] / n, a[2] / n}
}

// triangleAngles returns the interior angles of the triangle.
func triangleAngles(p0, p1, p2 vec3) [3]float64 {
	a0 := angleBetween(sub(p1, p0), sub(p2, p0))
	a1 := angleBetween(sub(p0, p1), sub(p2, p1))
	a2 := angleBetween(sub(p0, p2), sub(p1, p2))
	return [3]float64{a0, a1, a2}
}

func angleBetween(a, b vec3) float64 {
	c := dot(normalize(a), normalize(b))
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c)
}

// dihedralAngles returns the six dihedral angles of the tetrahedron.
func dihedralAngles(p0, p1, p2, p3 vec3) [6]float64 {
	e0 := sub(p1, p0)
	e1 := sub(p2, p0)
	e2 := sub(p3, p0)
	e3 := sub(p2, p1)
	e4 := sub(p3, p1)

	n0 := normalize(cross(e0, e1))
	n1 := normalize(cross(e0, e2))
	n2 := normalize(cross(e1, e2))
	n3 := normalize(cross(e3, e4))

	acos := func(v float64) float64 {
		return math.Acos(math.Max(-1, math.Min(1, v)))
	}
	return [6]float64{
		acos(dot(n0, n1)),
		acos(-dot(n0, n2)),
		acos(dot(n1, n2)),
		acos(dot(n0, n3)),
		acos(-dot(n1, n3)),
		acos(dot(n2, n3)),
	}
}

// cellAngles returns the relevant angles of the cell and the optimal
// angle of its equilateral counterpart.
func (m *Mesh) cellAngles(c Cell) ([]float64, float64, error) {
	switch m.CellType {
	case Triangle:
		a := triangleAngles(m.Vertices[c.Vertices[0]], m.Vertices[c.Vertices[1]], m.Vertices[c.Vertices[2]])
		return a[:], math.Pi / 3, nil
	case Tetrahedron:
		a := dihedralAngles(m.Vertices[c.Vertices[0]], m.Vertices[c.Vertices[1]],
			m.Vertices[c.Vertices[2]], m.Vertices[c.Vertices[3]])
		return a[:], math.Acos(1.0 / 3.0), nil
	default:
		return nil, 0, fmt.Errorf("mesh: quality measures require triangles or tetrahedra, have %s", m.CellType)
	}
}

// cellQuality evaluates f on every cell and returns the minimum and
// average values.
func (m *Mesh) cellQuality(f func(Cell) (float64, error)) (min, avg float64, err error) {
	if len(m.Cells) == 0 {
		return 0, 0, fmt.Errorf("mesh: no cells")
	}
	min = math.Inf(1)
	sum := 0.0
	for _, c := range m.Cells {
		q, err := f(c)
		if err != nil {
			return 0, 0, err
		}
		min = math.Min(min, q)
		sum += q
	}
	return min, sum / float64(len(m.Cells)), nil
}

func (m *Mesh) skewness(c Cell) (float64, error) {
	angles, opt, err := m.cellAngles(c)
	if err != nil {
		return 0, err
	}
	q := math.Inf(1)
	for _, a := range angles {
		v := 1 - math.Max((a-opt)/(math.Pi-opt), (opt-a)/opt)
		q = math.Min(q, v)
	}
	return q, nil
}

func (m *Mesh) maximumAngle(c Cell) (float64, error) {
	angles, opt, err := m.cellAngles(c)
	if err != nil {
		return 0, err
	}
	q := math.Inf(1)
	for _, a := range angles {
		v := 1 - math.Max((a-opt)/(math.Pi-opt), 0)
		q = math.Min(q, v)
	}
	return q, nil
}

// radiusRatio is d * inradius / circumradius, normalized to value 1
// for the equilateral element.
func (m *Mesh) radiusRatio(c Cell) (float64, error) {
	switch m.CellType {
	case Triangle:
		p0, p1, p2 := m.Vertices[c.Vertices[0]], m.Vertices[c.Vertices[1]], m.Vertices[c.Vertices[2]]
		a := norm(sub(p1, p2))
		b := norm(sub(p0, p2))
		cc := norm(sub(p0, p1))
		area := 0.5 * norm(cross(sub(p1, p0), sub(p2, p0)))
		if area == 0 || a*b*cc == 0 {
			return 0, nil
		}
		inradius := 2 * area / (a + b + cc)
		circumradius := a * b * cc / (4 * area)
		return 2 * inradius / circumradius, nil
	case Tetrahedron:
		p0, p1, p2, p3 := m.Vertices[c.Vertices[0]], m.Vertices[c.Vertices[1]],
			m.Vertices[c.Vertices[2]], m.Vertices[c.Vertices[3]]
		e1, e2, e3 := sub(p1, p0), sub(p2, p0), sub(p3, p0)
		volume := math.Abs(dot(e1, cross(e2, e3))) / 6
		if volume == 0 {
			return 0, nil
		}
		faceAreas := 0.5 * (norm(cross(e1, e2)) + norm(cross(e1, e3)) + norm(cross(e2, e3)) +
			norm(cross(sub(p2, p1), sub(p3, p1))))
		inradius := 3 * volume / faceAreas
		circumradius, ok := tetCircumradius(p0, p1, p2, p3)
		if !ok {
			return 0, nil
		}
		return 3 * inradius / circumradius, nil
	default:
		return 0, fmt.Errorf("mesh: quality measures require triangles or tetrahedra, have %s", m.CellType)
	}
}

// tetCircumradius solves for the circumcenter from the equidistance
// conditions.
func tetCircumradius(p0, p1, p2, p3 vec3) (float64, bool) {
	rows := [3]vec3{sub(p1, p0), sub(p2, p0), sub(p3, p0)}
	a := mat.NewDense(3, 3, nil)
	b := mat.NewVecDense(3, nil)
	for i, r := range rows {
		a.Set(i, 0, 2*r[0])
		a.Set(i, 1, 2*r[1])
		a.Set(i, 2, 2*r[2])
		pi := [3]vec3{p1, p2, p3}[i]
		b.SetVec(i, dot(pi, pi)-dot(p0, p0))
	}
	var lu mat.LU
	lu.Factorize(a)
	center := mat.NewVecDense(3, nil)
	if err := lu.SolveVecTo(center, false, b); err != nil {
		return 0, false
	}
	d := sub(vec3{center.AtVec(0), center.AtVec(1), center.AtVec(2)}, p0)
	return norm(d), true
}

// conditionNumber is sqrt(d) divided by the Frobenius condition
// number of the affine map from the reference element.
func (m *Mesh) conditionNumber(c Cell) (float64, error) {
	var jac *mat.Dense
	switch m.CellType {
	case Triangle:
		p0, p1, p2 := m.Vertices[c.Vertices[0]], m.Vertices[c.Vertices[1]], m.Vertices[c.Vertices[2]]
		e1, e2 := sub(p1, p0), sub(p2, p0)
		jac = mat.NewDense(2, 2, []float64{e1[0], e2[0], e1[1], e2[1]})
	case Tetrahedron:
		p0 := m.Vertices[c.Vertices[0]]
		jac = mat.NewDense(3, 3, nil)
		for j := 1; j <= 3; j++ {
			e := sub(m.Vertices[c.Vertices[j]], p0)
			for i := 0; i < 3; i++ {
				jac.Set(i, j-1, e[i])
			}
		}
	default:
		return 0, fmt.Errorf("mesh: quality measures require triangles or tetrahedra, have %s", m.CellType)
	}

	d, _ := jac.Dims()
	var inv mat.Dense
	if err := inv.Inverse(jac); err != nil {
		return 0, nil // degenerate cell
	}
	cond := mat.Norm(jac, 2) * mat.Norm(&inv, 2)
	return math.Sqrt(float64(d)) / cond, nil
}

// MinSkewness computes the minimal skewness quality of the mesh.
func MinSkewness(m *Mesh) (float64, error) {
	min, _, err := m.cellQuality(m.skewness)
	return min, err
}

// AvgSkewness computes the average skewness quality of the mesh.
func AvgSkewness(m *Mesh) (float64, error) {
	_, avg, err := m.cellQuality(m.skewness)
	return avg, err
}

// MinMaximumAngle computes the minimal maximum-angle quality.
func MinMaximumAngle(m *Mesh) (float64, error) {
	min, _, err := m.cellQuality(m.maximumAngle)
	return min, err
}

// AvgMaximumAngle computes the average maximum-angle quality.
func AvgMaximumAngle(m *Mesh) (float64, error) {
	_, avg, err := m.cellQuality(m.maximumAngle)
	return avg, err
}

// MinRadiusRatios computes the minimal normalized radius ratio.
func MinRadiusRatios(m *Mesh) (float64, error) {
	min, _, err := m.cellQuality(m.radiusRatio)
	return min, err
}

// AvgRadiusRatios computes the average normalized radius ratio.
func AvgRadiusRatios(m *Mesh) (float64, error) {
	_, avg, err := m.cellQuality(m.radiusRatio)
	return avg, err
}

// MinConditionNumber computes the minimal condition-number quality.
func MinConditionNumber(m *Mesh) (float64, error) {
	min, _, err := m.cellQuality(m.conditionNumber)
	return min, err
}

// AvgConditionNumber computes the average condition-number quality.
func AvgConditionNumber(m *Mesh) (float64, error) {
	_, avg, err := m.cellQuality(m.conditionNumber)
	return avg, err
}
