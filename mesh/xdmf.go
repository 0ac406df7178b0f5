package mesh

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// The XDMF output follows the layout the solver imports: the mesh
// itself in <base>.xdmf, cell markers in <base>_subdomains.xdmf and
// facet markers in <base>_boundaries.xdmf.

type xdmfFile struct {
	XMLName xml.Name   `xml:"Xdmf"`
	Version string     `xml:"Version,attr"`
	Domain  xdmfDomain `xml:"Domain"`
}

type xdmfDomain struct {
	Grids []xdmfGrid `xml:"Grid"`
}

type xdmfGrid struct {
	Name      string         `xml:"Name,attr"`
	GridType  string         `xml:"GridType,attr"`
	Topology  *xdmfTopology  `xml:"Topology"`
	Geometry  *xdmfGeometry  `xml:"Geometry"`
	Attribute *xdmfAttribute `xml:"Attribute,omitempty"`
}

type xdmfTopology struct {
	TopologyType     string       `xml:"TopologyType,attr"`
	NumberOfElements int          `xml:"NumberOfElements,attr"`
	NodesPerElement  int          `xml:"NodesPerElement,attr,omitempty"`
	Data             xdmfDataItem `xml:"DataItem"`
}

type xdmfGeometry struct {
	GeometryType string       `xml:"GeometryType,attr"`
	Data         xdmfDataItem `xml:"DataItem"`
}

type xdmfAttribute struct {
	Name          string       `xml:"Name,attr"`
	AttributeType string       `xml:"AttributeType,attr"`
	Center        string       `xml:"Center,attr"`
	Data          xdmfDataItem `xml:"DataItem"`
}

type xdmfDataItem struct {
	Dimensions string `xml:"Dimensions,attr"`
	NumberType string `xml:"NumberType,attr,omitempty"`
	Format     string `xml:"Format,attr"`
	Text       string `xml:",chardata"`
}

func topologyTypeOf(c CellType) string {
	switch c {
	case Line:
		return "Polyline"
	case Triangle:
		return "Triangle"
	default:
		return "Tetrahedron"
	}
}

func cellTypeOfTopology(name string) (CellType, error) {
	switch name {
	case "Polyline":
		return Line, nil
	case "Triangle":
		return Triangle, nil
	case "Tetrahedron":
		return Tetrahedron, nil
	default:
		return 0, fmt.Errorf("xdmf: unsupported topology type %q", name)
	}
}

// WriteXDMF writes the mesh and its marker files. The path names the
// main mesh file and must end in .xdmf; the marker files are derived
// from it. Marker files are only written when the mesh carries the
// corresponding tags.
func WriteXDMF(m *Mesh, path string) error {
	if !strings.HasSuffix(path, ".xdmf") {
		return fmt.Errorf("xdmf: output path %q must end in .xdmf", path)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	base := strings.TrimSuffix(path, ".xdmf")

	mesh := xdmfFile{
		Version: "3.0",
		Domain: xdmfDomain{Grids: []xdmfGrid{{
			Name:     "mesh",
			GridType: "Uniform",
			Topology: topologyItem(m.CellType, m.Cells),
			Geometry: geometryItem(m),
		}}},
	}
	if err := writeXdmfFile(path, &mesh); err != nil {
		return err
	}

	if len(m.DomainTags()) > 0 {
		sub := markerFile(m, "subdomains", m.CellType, m.Cells)
		if err := writeXdmfFile(base+"_subdomains.xdmf", sub); err != nil {
			return err
		}
	}
	if len(m.Facets) > 0 {
		bnd := markerFile(m, "boundaries", m.CellType.facetType(), m.Facets)
		if err := writeXdmfFile(base+"_boundaries.xdmf", bnd); err != nil {
			return err
		}
	}
	return nil
}

func topologyItem(ctype CellType, cells []Cell) *xdmfTopology {
	var sb strings.Builder
	for _, c := range cells {
		for i, v := range c.Vertices {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.Itoa(v))
		}
		sb.WriteByte('\n')
	}
	top := &xdmfTopology{
		TopologyType:     topologyTypeOf(ctype),
		NumberOfElements: len(cells),
		Data: xdmfDataItem{
			Dimensions: fmt.Sprintf("%d %d", len(cells), ctype.NumVertices()),
			NumberType: "Int",
			Format:     "XML",
			Text:       "\n" + sb.String(),
		},
	}
	if ctype == Line {
		top.NodesPerElement = 2
	}
	return top
}

func geometryItem(m *Mesh) *xdmfGeometry {
	gdim := m.GeometricDim()
	gtype := "XYZ"
	if gdim == 2 {
		gtype = "XY"
	}
	var sb strings.Builder
	for _, v := range m.Vertices {
		for i := 0; i < gdim; i++ {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatFloat(v[i], 'g', -1, 64))
		}
		sb.WriteByte('\n')
	}
	return &xdmfGeometry{
		GeometryType: gtype,
		Data: xdmfDataItem{
			Dimensions: fmt.Sprintf("%d %d", len(m.Vertices), gdim),
			Format:     "XML",
			Text:       "\n" + sb.String(),
		},
	}
}

// markerFile builds a full grid carrying the physical tags of the
// given entities as a cell-centered attribute.
func markerFile(m *Mesh, name string, ctype CellType, cells []Cell) *xdmfFile {
	var sb strings.Builder
	for _, c := range cells {
		sb.WriteString(strconv.Itoa(c.Tag))
		sb.WriteByte('\n')
	}
	return &xdmfFile{
		Version: "3.0",
		Domain: xdmfDomain{Grids: []xdmfGrid{{
			Name:     name,
			GridType: "Uniform",
			Topology: topologyItem(ctype, cells),
			Geometry: geometryItem(m),
			Attribute: &xdmfAttribute{
				Name:          name,
				AttributeType: "Scalar",
				Center:        "Cell",
				Data: xdmfDataItem{
					Dimensions: strconv.Itoa(len(cells)),
					NumberType: "Int",
					Format:     "XML",
					Text:       "\n" + sb.String(),
				},
			},
		}}},
	}
}

func writeXdmfFile(path string, f *xdmfFile) error {
	data, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("xdmf: marshaling %s: %w", path, err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("xdmf: writing %s: %w", path, err)
	}
	return nil
}

// ReadXDMF reads a mesh written by WriteXDMF, including the marker
// files when they exist next to the main file.
func ReadXDMF(path string) (*Mesh, error) {
	base := strings.TrimSuffix(path, ".xdmf")
	if base == path {
		return nil, fmt.Errorf("xdmf: input path %q must end in .xdmf", path)
	}

	grid, err := readGrid(path)
	if err != nil {
		return nil, err
	}
	ctype, err := cellTypeOfTopology(grid.Topology.TopologyType)
	if err != nil {
		return nil, err
	}
	vertices, err := parseGeometry(grid.Geometry)
	if err != nil {
		return nil, fmt.Errorf("xdmf: %s: %w", path, err)
	}
	cells, err := parseTopology(grid.Topology, ctype)
	if err != nil {
		return nil, fmt.Errorf("xdmf: %s: %w", path, err)
	}

	m := &Mesh{CellType: ctype, Vertices: vertices, Cells: cells}

	if sub, err := readGrid(base + "_subdomains.xdmf"); err == nil {
		if err := applyTags(m.Cells, sub); err != nil {
			return nil, fmt.Errorf("xdmf: subdomains: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if bnd, err := readGrid(base + "_boundaries.xdmf"); err == nil {
		ftype, err := cellTypeOfTopology(bnd.Topology.TopologyType)
		if err != nil {
			return nil, err
		}
		if ftype != ctype.facetType() {
			return nil, fmt.Errorf("xdmf: boundaries have type %s, want %s", ftype, ctype.facetType())
		}
		facets, err := parseTopology(bnd.Topology, ftype)
		if err != nil {
			return nil, fmt.Errorf("xdmf: boundaries: %w", err)
		}
		if err := applyTags(facets, bnd); err != nil {
			return nil, fmt.Errorf("xdmf: boundaries: %w", err)
		}
		m.Facets = facets
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func readGrid(path string) (*xdmfGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f xdmfFile
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("xdmf: parsing %s: %w", path, err)
	}
	if len(f.Domain.Grids) == 0 {
		return nil, fmt.Errorf("xdmf: %s contains no grid", path)
	}
	grid := &f.Domain.Grids[0]
	if grid.Topology == nil || grid.Geometry == nil {
		return nil, fmt.Errorf("xdmf: %s grid lacks topology or geometry", path)
	}
	return grid, nil
}

func parseTopology(top *xdmfTopology, ctype CellType) ([]Cell, error) {
	fields := strings.Fields(top.Data.Text)
	nv := ctype.NumVertices()
	if len(fields)%nv != 0 {
		return nil, fmt.Errorf("topology data length %d is not a multiple of %d", len(fields), nv)
	}
	cells := make([]Cell, len(fields)/nv)
	for i := range cells {
		verts := make([]int, nv)
		for j := 0; j < nv; j++ {
			v, err := strconv.Atoi(fields[i*nv+j])
			if err != nil {
				return nil, fmt.Errorf("malformed vertex index %q", fields[i*nv+j])
			}
			verts[j] = v
		}
		cells[i] = Cell{Vertices: verts}
	}
	return cells, nil
}

func parseGeometry(geo *xdmfGeometry) ([][3]float64, error) {
	gdim := 3
	if geo.GeometryType == "XY" {
		gdim = 2
	}
	fields := strings.Fields(geo.Data.Text)
	if len(fields)%gdim != 0 {
		return nil, fmt.Errorf("geometry data length %d is not a multiple of %d", len(fields), gdim)
	}
	vertices := make([][3]float64, len(fields)/gdim)
	for i := range vertices {
		for j := 0; j < gdim; j++ {
			v, err := strconv.ParseFloat(fields[i*gdim+j], 64)
			if err != nil {
				return nil, fmt.Errorf("malformed coordinate %q", fields[i*gdim+j])
			}
			vertices[i][j] = v
		}
	}
	return vertices, nil
}

func applyTags(cells []Cell, grid *xdmfGrid) error {
	if grid.Attribute == nil {
		return fmt.Errorf("marker grid lacks an attribute")
	}
	fields := strings.Fields(grid.Attribute.Data.Text)
	if len(fields) != len(cells) {
		return fmt.Errorf("marker count %d does not match entity count %d", len(fields), len(cells))
	}
	for i, f := range fields {
		tag, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("malformed marker %q", f)
		}
		cells[i].Tag = tag
	}
	return nil
}
