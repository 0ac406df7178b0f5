package mesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Unit square split into two triangles, with both vertical boundary
// edges tagged.
const squareV2 = `$MeshFormat
2.2 0 8
$EndMeshFormat
$PhysicalNames
3
1 1 "inlet"
1 2 "outlet"
2 5 "volume"
$EndPhysicalNames
$Nodes
4
1 0 0 0
2 1 0 0
3 1 1 0
4 0 1 0
$EndNodes
$Elements
4
1 1 2 1 1 4 1
2 1 2 2 2 2 3
3 2 2 5 1 1 2 3
4 2 2 5 1 1 3 4
$EndElements
`

const squareV41 = `$MeshFormat
4.1 0 8
$EndMeshFormat
$PhysicalNames
2
1 2 "outlet"
2 5 "volume"
$EndPhysicalNames
$Entities
0 1 1 0
1 1 0 0 1 1 0 1 2 2 -3
1 0 0 0 1 1 0 1 5 4 1 2 -3 -4
$EndEntities
$Nodes
1 4 1 4
2 1 0 4
1
2
3
4
0 0 0
1 0 0
1 1 0
0 1 0
$EndNodes
$Elements
2 3 1 3
1 1 1 1
1 2 3
2 1 2 2
2 1 2 3
3 1 3 4
$EndElements
`

func TestReadGmshV2(t *testing.T) {
	m, err := ReadGmshFrom(strings.NewReader(squareV2))
	require.NoError(t, err)

	assert.Equal(t, Triangle, m.CellType)
	assert.Equal(t, 4, m.NumVertices())
	assert.Equal(t, 2, m.NumCells())
	assert.Equal(t, 2, m.NumFacets())
	assert.Equal(t, 2, m.Dim())
	assert.Equal(t, 2, m.GeometricDim())

	assert.Equal(t, [3]float64{1, 1, 0}, m.Vertices[2])
	assert.Equal(t, []int{0, 1, 2}, m.Cells[0].Vertices)
	assert.Equal(t, 5, m.Cells[0].Tag)
	assert.Equal(t, 1, m.Facets[0].Tag)
	assert.Equal(t, 2, m.Facets[1].Tag)

	assert.Equal(t, []int{5}, m.DomainTags())
	assert.Equal(t, []int{1, 2}, m.BoundaryTags())
	assert.Equal(t, "inlet", m.PhysicalNames[1])
	assert.Equal(t, "volume", m.PhysicalNames[5])
}

func TestReadGmshV41(t *testing.T) {
	m, err := ReadGmshFrom(strings.NewReader(squareV41))
	require.NoError(t, err)

	assert.Equal(t, Triangle, m.CellType)
	assert.Equal(t, 4, m.NumVertices())
	assert.Equal(t, 2, m.NumCells())
	require.Equal(t, 1, m.NumFacets())

	// Element tags come from the physical group of the owning entity.
	assert.Equal(t, 2, m.Facets[0].Tag)
	assert.Equal(t, []int{1, 2}, m.Facets[0].Vertices)
	assert.Equal(t, 5, m.Cells[0].Tag)
	assert.Equal(t, 5, m.Cells[1].Tag)
	assert.Equal(t, "outlet", m.PhysicalNames[2])
}

func TestReadGmshSkipsUnknownSections(t *testing.T) {
	withComment := strings.Replace(squareV2, "$Nodes",
		"$Comments\nanything goes here\n$EndComments\n$Nodes", 1)
	m, err := ReadGmshFrom(strings.NewReader(withComment))
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumCells())
}

func TestReadGmshErrors(t *testing.T) {
	cases := []struct {
		name string
		msh  string
		want string
	}{
		{
			name: "unsupported version",
			msh:  strings.Replace(squareV2, "2.2 0 8", "3.0 0 8", 1),
			want: "unsupported GMSH format version",
		},
		{
			name: "binary file",
			msh:  strings.Replace(squareV2, "2.2 0 8", "2.2 1 8", 1),
			want: "binary",
		},
		{
			name: "unterminated section",
			msh:  strings.Replace(squareV2, "$EndElements\n", "", 1),
			want: "not terminated",
		},
		{
			name: "no surface elements",
			msh: `$MeshFormat
2.2 0 8
$EndMeshFormat
$Nodes
2
1 0 0 0
2 1 0 0
$EndNodes
$Elements
1
1 1 2 1 1 1 2
$EndElements
`,
			want: "no surface or volume elements",
		},
		{
			name: "unknown node reference",
			msh:  strings.Replace(squareV2, "4 2 2 5 1 1 3 4", "4 2 2 5 1 1 3 9", 1),
			want: "unknown node",
		},
		{
			name: "wrong node count",
			msh:  strings.Replace(squareV2, "3 2 2 5 1 1 2 3", "3 2 2 5 1 1 2", 1),
			want: "nodes, want",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadGmshFrom(strings.NewReader(tc.msh))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestReadGmshFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "square.msh")
	require.NoError(t, os.WriteFile(path, []byte(squareV2), 0o644))

	m, err := ReadGmsh(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumCells())

	_, err = ReadGmsh(filepath.Join(dir, "missing.msh"))
	require.Error(t, err)
}
