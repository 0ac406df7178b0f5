package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// GMSH element type codes of the MSH format.
const (
	gmshLine     = 1
	gmshTriangle = 2
	gmshTet      = 4
	gmshPoint    = 15
)

func cellTypeOf(gmshType int) (CellType, bool) {
	switch gmshType {
	case gmshPoint:
		return Vertex, true
	case gmshLine:
		return Line, true
	case gmshTriangle:
		return Triangle, true
	case gmshTet:
		return Tetrahedron, true
	default:
		return 0, false
	}
}

// rawElement is a GMSH element before dimension filtering.
type rawElement struct {
	ctype CellType
	tag   int   // physical group tag, 0 if none
	nodes []int // GMSH node tags
}

// ReadGmsh parses a GMSH .msh file in ASCII format 2.2 or 4.1.
func ReadGmsh(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gmsh: %w", err)
	}
	defer f.Close()
	m, err := ReadGmshFrom(f)
	if err != nil {
		return nil, fmt.Errorf("gmsh: %s: %w", path, err)
	}
	return m, nil
}

// lineScanner reads non-empty lines and tracks the line number for
// error reporting.
type lineScanner struct {
	sc   *bufio.Scanner
	line int
}

func (ls *lineScanner) next() (string, error) {
	for ls.sc.Scan() {
		ls.line++
		s := strings.TrimSpace(ls.sc.Text())
		if s != "" {
			return s, nil
		}
	}
	if err := ls.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (ls *lineScanner) errf(format string, args ...interface{}) error {
	return fmt.Errorf("line %d: %s", ls.line, fmt.Sprintf(format, args...))
}

// ReadGmshFrom parses a GMSH mesh from r.
func ReadGmshFrom(r io.Reader) (*Mesh, error) {
	ls := &lineScanner{sc: bufio.NewScanner(r)}
	ls.sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	p := &gmshParser{ls: ls, physicalNames: make(map[int]string)}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.build()
}

type gmshParser struct {
	ls            *lineScanner
	version       string
	nodes         map[int][3]float64 // node tag -> coordinates
	nodeOrder     []int              // node tags in file order
	elements      []rawElement
	physicalNames map[int]string
	// entity (dim, tag) -> physical tag, format 4.1 only
	entityPhysical map[[2]int]int
}

func (p *gmshParser) run() error {
	for {
		line, err := p.ls.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch line {
		case "$MeshFormat":
			if err := p.parseFormat(); err != nil {
				return err
			}
		case "$PhysicalNames":
			if err := p.parsePhysicalNames(); err != nil {
				return err
			}
		case "$Entities":
			if err := p.parseEntities(); err != nil {
				return err
			}
		case "$Nodes":
			if err := p.parseNodes(); err != nil {
				return err
			}
		case "$Elements":
			if err := p.parseElements(); err != nil {
				return err
			}
		default:
			if strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "$End") {
				if err := p.skipSection(line); err != nil {
					return err
				}
			}
		}
	}
}

func (p *gmshParser) skipSection(start string) error {
	end := "$End" + start[1:]
	for {
		line, err := p.ls.next()
		if err == io.EOF {
			return p.ls.errf("section %s is not terminated", start)
		}
		if err != nil {
			return err
		}
		if line == end {
			return nil
		}
	}
}

func (p *gmshParser) expectEnd(section string) error {
	line, err := p.ls.next()
	if err != nil {
		return p.ls.errf("section %s is not terminated", section)
	}
	if line != "$End"+section {
		return p.ls.errf("expected $End%s, got %q", section, line)
	}
	return nil
}

func (p *gmshParser) parseFormat() error {
	line, err := p.ls.next()
	if err != nil {
		return p.ls.errf("missing mesh format line")
	}
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return p.ls.errf("malformed mesh format line %q", line)
	}
	p.version = fields[0]
	switch {
	case strings.HasPrefix(p.version, "2."):
	case p.version == "4.1":
	default:
		return p.ls.errf("unsupported GMSH format version %s (supported: 2.x, 4.1)", p.version)
	}
	if fields[1] != "0" {
		return p.ls.errf("binary GMSH files are not supported")
	}
	return p.expectEnd("MeshFormat")
}

func (p *gmshParser) parsePhysicalNames() error {
	line, err := p.ls.next()
	if err != nil {
		return p.ls.errf("missing physical name count")
	}
	count, err := strconv.Atoi(line)
	if err != nil {
		return p.ls.errf("malformed physical name count %q", line)
	}
	for i := 0; i < count; i++ {
		line, err := p.ls.next()
		if err != nil {
			return p.ls.errf("unexpected end of $PhysicalNames")
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			return p.ls.errf("malformed physical name %q", line)
		}
		tag, err := strconv.Atoi(fields[1])
		if err != nil {
			return p.ls.errf("malformed physical tag %q", fields[1])
		}
		p.physicalNames[tag] = strings.Trim(fields[2], `"`)
	}
	return p.expectEnd("PhysicalNames")
}

// parseEntities records the physical tag of each model entity, needed
// to resolve element tags in format 4.1.
func (p *gmshParser) parseEntities() error {
	p.entityPhysical = make(map[[2]int]int)
	line, err := p.ls.next()
	if err != nil {
		return p.ls.errf("missing entity counts")
	}
	counts := strings.Fields(line)
	if len(counts) != 4 {
		return p.ls.errf("malformed entity counts %q", line)
	}
	for dim := 0; dim < 4; dim++ {
		n, err := strconv.Atoi(counts[dim])
		if err != nil {
			return p.ls.errf("malformed entity count %q", counts[dim])
		}
		for i := 0; i < n; i++ {
			line, err := p.ls.next()
			if err != nil {
				return p.ls.errf("unexpected end of $Entities")
			}
			fields := strings.Fields(line)
			// tag, bounding box (3 values for points, 6 otherwise),
			// then the number of physical tags.
			bbox := 6
			if dim == 0 {
				bbox = 3
			}
			if len(fields) < bbox+2 {
				return p.ls.errf("malformed entity %q", line)
			}
			tag, err := strconv.Atoi(fields[0])
			if err != nil {
				return p.ls.errf("malformed entity tag %q", fields[0])
			}
			numPhys, err := strconv.Atoi(fields[bbox+1])
			if err != nil {
				return p.ls.errf("malformed physical tag count %q", fields[bbox+1])
			}
			if numPhys > 0 {
				if len(fields) < bbox+2+numPhys {
					return p.ls.errf("truncated entity %q", line)
				}
				phys, err := strconv.Atoi(fields[bbox+2])
				if err != nil {
					return p.ls.errf("malformed physical tag %q", fields[bbox+2])
				}
				p.entityPhysical[[2]int{dim, tag}] = phys
			}
		}
	}
	return p.expectEnd("Entities")
}

func (p *gmshParser) parseNodes() error {
	p.nodes = make(map[int][3]float64)
	if strings.HasPrefix(p.version, "2.") {
		return p.parseNodesV2()
	}
	return p.parseNodesV4()
}

func (p *gmshParser) parseNodesV2() error {
	line, err := p.ls.next()
	if err != nil {
		return p.ls.errf("missing node count")
	}
	count, err := strconv.Atoi(line)
	if err != nil {
		return p.ls.errf("malformed node count %q", line)
	}
	for i := 0; i < count; i++ {
		line, err := p.ls.next()
		if err != nil {
			return p.ls.errf("unexpected end of $Nodes")
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return p.ls.errf("malformed node %q", line)
		}
		tag, coords, err := parseNodeFields(fields[0], fields[1:])
		if err != nil {
			return p.ls.errf("%v", err)
		}
		p.addNode(tag, coords)
	}
	return p.expectEnd("Nodes")
}

func (p *gmshParser) parseNodesV4() error {
	line, err := p.ls.next()
	if err != nil {
		return p.ls.errf("missing node header")
	}
	header := strings.Fields(line)
	if len(header) != 4 {
		return p.ls.errf("malformed node header %q", line)
	}
	numBlocks, err := strconv.Atoi(header[0])
	if err != nil {
		return p.ls.errf("malformed block count %q", header[0])
	}
	for b := 0; b < numBlocks; b++ {
		line, err := p.ls.next()
		if err != nil {
			return p.ls.errf("unexpected end of $Nodes")
		}
		block := strings.Fields(line)
		if len(block) != 4 {
			return p.ls.errf("malformed node block header %q", line)
		}
		parametric := block[2] != "0"
		if parametric {
			return p.ls.errf("parametric nodes are not supported")
		}
		numNodes, err := strconv.Atoi(block[3])
		if err != nil {
			return p.ls.errf("malformed node block size %q", block[3])
		}
		tags := make([]int, numNodes)
		for i := 0; i < numNodes; i++ {
			line, err := p.ls.next()
			if err != nil {
				return p.ls.errf("unexpected end of node tags")
			}
			tags[i], err = strconv.Atoi(line)
			if err != nil {
				return p.ls.errf("malformed node tag %q", line)
			}
		}
		for i := 0; i < numNodes; i++ {
			line, err := p.ls.next()
			if err != nil {
				return p.ls.errf("unexpected end of node coordinates")
			}
			fields := strings.Fields(line)
			if len(fields) != 3 {
				return p.ls.errf("malformed node coordinates %q", line)
			}
			_, coords, err := parseNodeFields(strconv.Itoa(tags[i]), fields)
			if err != nil {
				return p.ls.errf("%v", err)
			}
			p.addNode(tags[i], coords)
		}
	}
	return p.expectEnd("Nodes")
}

func parseNodeFields(tagField string, coordFields []string) (int, [3]float64, error) {
	tag, err := strconv.Atoi(tagField)
	if err != nil {
		return 0, [3]float64{}, fmt.Errorf("malformed node tag %q", tagField)
	}
	var coords [3]float64
	for i, f := range coordFields {
		coords[i], err = strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, [3]float64{}, fmt.Errorf("malformed coordinate %q", f)
		}
	}
	return tag, coords, nil
}

func (p *gmshParser) addNode(tag int, coords [3]float64) {
	if _, ok := p.nodes[tag]; !ok {
		p.nodeOrder = append(p.nodeOrder, tag)
	}
	p.nodes[tag] = coords
}

func (p *gmshParser) parseElements() error {
	if strings.HasPrefix(p.version, "2.") {
		return p.parseElementsV2()
	}
	return p.parseElementsV4()
}

func (p *gmshParser) parseElementsV2() error {
	line, err := p.ls.next()
	if err != nil {
		return p.ls.errf("missing element count")
	}
	count, err := strconv.Atoi(line)
	if err != nil {
		return p.ls.errf("malformed element count %q", line)
	}
	for i := 0; i < count; i++ {
		line, err := p.ls.next()
		if err != nil {
			return p.ls.errf("unexpected end of $Elements")
		}
		fields, err := atois(strings.Fields(line))
		if err != nil {
			return p.ls.errf("malformed element %q", line)
		}
		if len(fields) < 3 {
			return p.ls.errf("malformed element %q", line)
		}
		etype, numTags := fields[1], fields[2]
		ctype, ok := cellTypeOf(etype)
		if !ok {
			// Higher-order and unsupported element types are skipped.
			continue
		}
		nv := ctype.NumVertices()
		if len(fields) != 3+numTags+nv {
			return p.ls.errf("element %q has %d nodes, want %d", line, len(fields)-3-numTags, nv)
		}
		tag := 0
		if numTags > 0 {
			tag = fields[3]
		}
		p.elements = append(p.elements, rawElement{
			ctype: ctype,
			tag:   tag,
			nodes: fields[3+numTags:],
		})
	}
	return p.expectEnd("Elements")
}

func (p *gmshParser) parseElementsV4() error {
	line, err := p.ls.next()
	if err != nil {
		return p.ls.errf("missing element header")
	}
	header := strings.Fields(line)
	if len(header) != 4 {
		return p.ls.errf("malformed element header %q", line)
	}
	numBlocks, err := strconv.Atoi(header[0])
	if err != nil {
		return p.ls.errf("malformed block count %q", header[0])
	}
	for b := 0; b < numBlocks; b++ {
		line, err := p.ls.next()
		if err != nil {
			return p.ls.errf("unexpected end of $Elements")
		}
		block, err := atois(strings.Fields(line))
		if err != nil || len(block) != 4 {
			return p.ls.errf("malformed element block header %q", line)
		}
		entityDim, entityTag, etype, numElems := block[0], block[1], block[2], block[3]
		ctype, ok := cellTypeOf(etype)
		physical := 0
		if p.entityPhysical != nil {
			physical = p.entityPhysical[[2]int{entityDim, entityTag}]
		}
		for i := 0; i < numElems; i++ {
			line, err := p.ls.next()
			if err != nil {
				return p.ls.errf("unexpected end of element block")
			}
			if !ok {
				continue
			}
			fields, err := atois(strings.Fields(line))
			if err != nil {
				return p.ls.errf("malformed element %q", line)
			}
			if len(fields) != 1+ctype.NumVertices() {
				return p.ls.errf("element %q has %d nodes, want %d", line, len(fields)-1, ctype.NumVertices())
			}
			p.elements = append(p.elements, rawElement{
				ctype: ctype,
				tag:   physical,
				nodes: fields[1:],
			})
		}
	}
	return p.expectEnd("Elements")
}

func atois(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// build assembles the Mesh from the parsed sections: the cells of the
// highest occurring dimension become the mesh cells, tagged entities
// one dimension lower become the boundary facets.
func (p *gmshParser) build() (*Mesh, error) {
	if p.version == "" {
		return nil, fmt.Errorf("missing $MeshFormat section")
	}
	if len(p.nodes) == 0 {
		return nil, fmt.Errorf("mesh has no nodes")
	}
	if len(p.elements) == 0 {
		return nil, fmt.Errorf("mesh has no supported elements")
	}

	topType := Vertex
	for _, e := range p.elements {
		if e.ctype.Dim() > topType.Dim() {
			topType = e.ctype
		}
	}
	if topType.Dim() < 2 {
		return nil, fmt.Errorf("mesh has no surface or volume elements")
	}

	index := make(map[int]int, len(p.nodeOrder))
	vertices := make([][3]float64, len(p.nodeOrder))
	for i, tag := range p.nodeOrder {
		index[tag] = i
		vertices[i] = p.nodes[tag]
	}

	m := &Mesh{
		CellType:      topType,
		Vertices:      vertices,
		PhysicalNames: p.physicalNames,
	}
	facetType := topType.facetType()
	for _, e := range p.elements {
		verts := make([]int, len(e.nodes))
		for i, tag := range e.nodes {
			idx, ok := index[tag]
			if !ok {
				return nil, fmt.Errorf("element references unknown node %d", tag)
			}
			verts[i] = idx
		}
		switch e.ctype {
		case topType:
			m.Cells = append(m.Cells, Cell{Vertices: verts, Tag: e.tag})
		case facetType:
			if e.tag != 0 {
				m.Facets = append(m.Facets, Cell{Vertices: verts, Tag: e.tag})
			}
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
