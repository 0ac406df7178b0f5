// Package mesh provides the mesh data model used by the conversion
// tooling: import of GMSH files, export to the XDMF triple consumed by
// the solver, structured mesh generation and element quality measures.
package mesh

import (
	"fmt"
	"strings"
)

// CellType enumerates the supported element geometries.
type CellType uint8

const (
	Vertex CellType = iota
	Line
	Triangle
	Tetrahedron
)

// Dim returns the topological dimension of the cell type.
func (c CellType) Dim() int {
	switch c {
	case Vertex:
		return 0
	case Line:
		return 1
	case Triangle:
		return 2
	default:
		return 3
	}
}

// NumVertices returns the number of vertices per cell.
func (c CellType) NumVertices() int {
	switch c {
	case Vertex:
		return 1
	case Line:
		return 2
	case Triangle:
		return 3
	default:
		return 4
	}
}

func (c CellType) String() string {
	switch c {
	case Vertex:
		return "vertex"
	case Line:
		return "line"
	case Triangle:
		return "triangle"
	default:
		return "tetrahedron"
	}
}

// facetType returns the cell type of a codimension-one entity.
func (c CellType) facetType() CellType {
	switch c {
	case Triangle:
		return Line
	case Tetrahedron:
		return Triangle
	default:
		return Vertex
	}
}

// Cell is one mesh entity: its vertex indices (into Mesh.Vertices) and
// the physical group tag it carries, zero if untagged.
type Cell struct {
	Vertices []int
	Tag      int
}

// Mesh holds a simplicial mesh together with its physical markers.
// Cells are the entities of the topological dimension, Facets the
// tagged codimension-one entities (the boundary markers).
type Mesh struct {
	CellType      CellType
	Vertices      [][3]float64
	Cells         []Cell
	Facets        []Cell
	PhysicalNames map[int]string // physical tag -> name, may be empty
}

// NumVertices returns the number of mesh vertices.
func (m *Mesh) NumVertices() int { return len(m.Vertices) }

// NumCells returns the number of cells of full dimension.
func (m *Mesh) NumCells() int { return len(m.Cells) }

// NumFacets returns the number of marked boundary facets.
func (m *Mesh) NumFacets() int { return len(m.Facets) }

// Dim returns the topological dimension of the mesh.
func (m *Mesh) Dim() int { return m.CellType.Dim() }

// GeometricDim returns 2 for planar meshes and 3 otherwise.
func (m *Mesh) GeometricDim() int {
	if m.CellType == Triangle {
		for _, v := range m.Vertices {
			if v[2] != 0 {
				return 3
			}
		}
		return 2
	}
	return 3
}

// DomainTags returns the distinct physical tags of the cells, ignoring
// untagged cells.
func (m *Mesh) DomainTags() []int {
	return distinctTags(m.Cells)
}

// BoundaryTags returns the distinct physical tags of the facets.
func (m *Mesh) BoundaryTags() []int {
	return distinctTags(m.Facets)
}

func distinctTags(cells []Cell) []int {
	seen := make(map[int]bool)
	var tags []int
	for _, c := range cells {
		if c.Tag != 0 && !seen[c.Tag] {
			seen[c.Tag] = true
			tags = append(tags, c.Tag)
		}
	}
	return tags
}

// Validate checks the internal consistency of the mesh.
func (m *Mesh) Validate() error {
	if len(m.Vertices) == 0 {
		return fmt.Errorf("mesh: no vertices")
	}
	if len(m.Cells) == 0 {
		return fmt.Errorf("mesh: no cells")
	}
	nv := m.CellType.NumVertices()
	for i, c := range m.Cells {
		if len(c.Vertices) != nv {
			return fmt.Errorf("mesh: cell %d has %d vertices, want %d", i, len(c.Vertices), nv)
		}
		for _, v := range c.Vertices {
			if v < 0 || v >= len(m.Vertices) {
				return fmt.Errorf("mesh: cell %d references vertex %d out of range", i, v)
			}
		}
	}
	nf := m.CellType.facetType().NumVertices()
	for i, f := range m.Facets {
		if len(f.Vertices) != nf {
			return fmt.Errorf("mesh: facet %d has %d vertices, want %d", i, len(f.Vertices), nf)
		}
		for _, v := range f.Vertices {
			if v < 0 || v >= len(m.Vertices) {
				return fmt.Errorf("mesh: facet %d references vertex %d out of range", i, v)
			}
		}
	}
	return nil
}

// String returns a summary of the mesh properties.
func (m *Mesh) String() string {
	var sb strings.Builder
	sb.WriteString("=== Mesh Summary ===\n")
	sb.WriteString(fmt.Sprintf("  Cell type: %s\n", m.CellType))
	sb.WriteString(fmt.Sprintf("  Vertices: %d\n", m.NumVertices()))
	sb.WriteString(fmt.Sprintf("  Cells: %d\n", m.NumCells()))
	sb.WriteString(fmt.Sprintf("  Marked facets: %d\n", m.NumFacets()))
	if tags := m.DomainTags(); len(tags) > 0 {
		sb.WriteString(fmt.Sprintf("  Domain tags: %v\n", tags))
	}
	if tags := m.BoundaryTags(); len(tags) > 0 {
		sb.WriteString(fmt.Sprintf("  Boundary tags: %v\n", tags))
	}
	for tag, name := range m.PhysicalNames {
		sb.WriteString(fmt.Sprintf("  Physical group %d: %s\n", tag, name))
	}
	return sb.String()
}
