package mesh

import (
	"fmt"
	"math"
)

// RegularMesh creates a uniform triangle mesh of the rectangle
// [0, lx] x [0, ly] with n elements along the shortest side and
// proportionally many along the longer one. The boundary facets carry
// the markers
//
//	1: x = 0,  2: x = lx,  3: y = 0,  4: y = ly.
func RegularMesh(n int, lx, ly float64) (*Mesh, error) {
	return RegularBoxMesh(n, 0, 0, lx, ly)
}

// RegularBoxMesh creates a uniform triangle mesh of the rectangle
// [sx, ex] x [sy, ey] with the same marker convention as RegularMesh.
func RegularBoxMesh(n int, sx, sy, ex, ey float64) (*Mesh, error) {
	if n <= 0 {
		return nil, fmt.Errorf("mesh: number of elements must be positive, got %d", n)
	}
	if ex <= sx || ey <= sy {
		return nil, fmt.Errorf("mesh: box (%g, %g) x (%g, %g) is degenerate", sx, ex, sy, ey)
	}
	lx, ly := ex-sx, ey-sy
	size := math.Min(lx, ly)
	nx := int(math.Round(lx / size * float64(n)))
	ny := int(math.Round(ly / size * float64(n)))

	m := &Mesh{CellType: Triangle}
	idx := func(i, j int) int { return j*(nx+1) + i }
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.Vertices = append(m.Vertices, [3]float64{
				sx + float64(i)/float64(nx)*lx,
				sy + float64(j)/float64(ny)*ly,
				0,
			})
		}
	}

	// Each grid square splits along the diagonal from its lower-left
	// to its upper-right corner.
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a, b := idx(i, j), idx(i+1, j)
			c, d := idx(i, j+1), idx(i+1, j+1)
			m.Cells = append(m.Cells,
				Cell{Vertices: []int{a, b, d}},
				Cell{Vertices: []int{a, d, c}},
			)
		}
	}

	for j := 0; j < ny; j++ {
		m.Facets = append(m.Facets,
			Cell{Vertices: []int{idx(0, j), idx(0, j+1)}, Tag: 1},
			Cell{Vertices: []int{idx(nx, j), idx(nx, j+1)}, Tag: 2},
		)
	}
	for i := 0; i < nx; i++ {
		m.Facets = append(m.Facets,
			Cell{Vertices: []int{idx(i, 0), idx(i+1, 0)}, Tag: 3},
			Cell{Vertices: []int{idx(i, ny), idx(i+1, ny)}, Tag: 4},
		)
	}
	return m, nil
}

// RegularCubeMesh creates a uniform tetrahedral mesh of the box
// [0, lx] x [0, ly] x [0, lz] by splitting every grid cube into six
// tetrahedra. The boundary facets carry the markers
//
//	1: x = 0,  2: x = lx,  3: y = 0,  4: y = ly,  5: z = 0,  6: z = lz.
func RegularCubeMesh(n int, lx, ly, lz float64) (*Mesh, error) {
	if n <= 0 {
		return nil, fmt.Errorf("mesh: number of elements must be positive, got %d", n)
	}
	if lx <= 0 || ly <= 0 || lz <= 0 {
		return nil, fmt.Errorf("mesh: box %g x %g x %g is degenerate", lx, ly, lz)
	}
	size := math.Min(lx, math.Min(ly, lz))
	nx := int(math.Round(lx / size * float64(n)))
	ny := int(math.Round(ly / size * float64(n)))
	nz := int(math.Round(lz / size * float64(n)))

	m := &Mesh{CellType: Tetrahedron}
	idx := func(i, j, k int) int { return (k*(ny+1)+j)*(nx+1) + i }
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				m.Vertices = append(m.Vertices, [3]float64{
					float64(i) / float64(nx) * lx,
					float64(j) / float64(ny) * ly,
					float64(k) / float64(nz) * lz,
				})
			}
		}
	}

	// Kuhn triangulation: one tetrahedron per monotone vertex path
	// from the low to the high corner of the cube.
	paths := [6][3][3]int{
		{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}},
		{{1, 0, 0}, {1, 0, 1}, {1, 1, 1}},
		{{0, 1, 0}, {1, 1, 0}, {1, 1, 1}},
		{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}},
		{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}},
		{{0, 0, 1}, {0, 1, 1}, {1, 1, 1}},
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				base := idx(i, j, k)
				for _, path := range paths {
					tet := []int{base}
					for _, off := range path {
						tet = append(tet, idx(i+off[0], j+off[1], k+off[2]))
					}
					m.Cells = append(m.Cells, Cell{Vertices: tet})
				}
			}
		}
	}

	// Boundary quads split along their low-to-high diagonal, matching
	// the faces of the Kuhn tetrahedra.
	quad := func(a, b, c, d, tag int) {
		m.Facets = append(m.Facets,
			Cell{Vertices: []int{a, b, d}, Tag: tag},
			Cell{Vertices: []int{a, d, c}, Tag: tag},
		)
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			quad(idx(0, j, k), idx(0, j+1, k), idx(0, j, k+1), idx(0, j+1, k+1), 1)
			quad(idx(nx, j, k), idx(nx, j+1, k), idx(nx, j, k+1), idx(nx, j+1, k+1), 2)
		}
	}
	for k := 0; k < nz; k++ {
		for i := 0; i < nx; i++ {
			quad(idx(i, 0, k), idx(i+1, 0, k), idx(i, 0, k+1), idx(i+1, 0, k+1), 3)
			quad(idx(i, ny, k), idx(i+1, ny, k), idx(i, ny, k+1), idx(i+1, ny, k+1), 4)
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			quad(idx(i, j, 0), idx(i+1, j, 0), idx(i, j+1, 0), idx(i+1, j+1, 0), 5)
			quad(idx(i, j, nz), idx(i+1, j, nz), idx(i, j+1, nz), idx(i+1, j+1, nz), 6)
		}
	}
	return m, nil
}
