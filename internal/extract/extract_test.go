package extract

import (
	"bytes"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/internal/texture"
	"github.com/Faultbox/garment-studio/pkg/math"
)

// quad builds a unit quad with UVs (0,0) (1,0) (0,1) (1,1).
func quad(name string) *scene.Node {
	n := scene.NewNode(name)
	n.Mesh = &scene.Mesh{
		Geometry: &scene.Geometry{
			Positions: []math.Vec3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}},
			UVs:       []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}},
			Indices:   []uint32{0, 1, 2, 1, 3, 2},
		},
		Materials: []*scene.Material{{Name: name + "-mat", BaseColor: color.NRGBA{10, 20, 30, 255}}},
	}
	return n
}

func TestExtractQuad(t *testing.T) {
	e := New(Options{UVMapResolution: 64, TextureResolution: 16}, nil)

	res, err := e.Extract(quad("shirt"))
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Len(t, res.UVMaps, 1)
	require.Len(t, res.Textures, 1)

	uv := res.UVMaps[0]
	require.Len(t, uv.Triangles, 2)
	assert.Equal(t, [3]Point{{0, 64}, {64, 64}, {0, 0}}, uv.Triangles[0])
	assert.Equal(t, [3]Point{{64, 64}, {64, 0}, {0, 0}}, uv.Triangles[1])

	// the shared edge runs along the canvas diagonal
	assert.NotZero(t, uv.Image.RGBAAt(32, 32).A)
	// the middle of a triangle is untouched
	assert.Zero(t, uv.Image.RGBAAt(16, 40).A)

	tex := res.Textures[0]
	assert.True(t, tex.Flat)
	w, h := tex.Texture.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 16, h)
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, tex.Texture.Image.RGBAAt(8, 8))
}

func TestExtractTriangleStride(t *testing.T) {
	n := quad("stride")
	g := n.Mesh.Geometry
	// 4 more triangles, 6 in total
	g.Indices = append(g.Indices, 0, 1, 2, 1, 3, 2, 0, 1, 2, 1, 3, 2)

	tests := []struct {
		stride int
		want   int
	}{
		{1, 6},
		{2, 3},
		{4, 2},
		{10, 1},
	}
	for _, tt := range tests {
		e := New(Options{UVMapResolution: 32, TriangleStride: tt.stride}, nil)
		res, err := e.Extract(n)
		require.NoError(t, err)
		assert.Len(t, res.UVMaps[0].Triangles, tt.want, "stride %d", tt.stride)
	}
}

func TestExtractNonIndexed(t *testing.T) {
	n := quad("soup")
	g := n.Mesh.Geometry
	g.Positions = []math.Vec3{{}, {X: 1}, {Y: 1}}
	g.UVs = []math.Vec2{{}, {X: 1}, {Y: 1}}
	g.Indices = nil

	res, err := New(Options{UVMapResolution: 32}, nil).Extract(n)
	require.NoError(t, err)
	assert.Len(t, res.UVMaps[0].Triangles, 1)
}

func TestExtractExistingMapIsShared(t *testing.T) {
	n := quad("printed")
	authored := texture.NewSolid("print", 4, color.White)
	n.Mesh.Materials[0].Map = authored

	res, err := New(DefaultOptions(), nil).Extract(n)
	require.NoError(t, err)
	assert.Same(t, authored, res.Textures[0].Texture)
	assert.False(t, res.Textures[0].Flat)

	res.Release()
	assert.False(t, authored.Released(), "releasing a result must not free scene textures")
}

func TestExtractIsolatesMeshFailures(t *testing.T) {
	root := scene.NewNode("root")
	bad := quad("bad")
	bad.Mesh.Geometry.Indices = []uint32{0, 1, 9}
	noUV := quad("plain")
	noUV.Mesh.Geometry.UVs = nil
	root.Add(quad("first"))
	root.Add(bad)
	root.Add(noUV)

	res, err := New(Options{UVMapResolution: 16, TextureResolution: 4}, nil).Extract(root)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failures)
	assert.True(t, errors.Is(res.Err, ErrMesh))
	require.Len(t, res.Textures, 2)
	assert.Equal(t, "first", res.Textures[0].Node)
	assert.Equal(t, "plain", res.Textures[1].Node)
	// only the mesh with UVs yields a map
	require.Len(t, res.UVMaps, 1)
	assert.Equal(t, "first", res.UVMaps[0].Node)
}

func TestExtractMultiMaterialGroups(t *testing.T) {
	n := quad("split")
	n.Mesh.Geometry.Groups = []scene.Group{{Start: 0, Count: 3, Material: 0}, {Start: 3, Count: 3, Material: 1}}
	n.Mesh.Materials = append(n.Mesh.Materials, &scene.Material{Name: "back"})

	res, err := New(Options{UVMapResolution: 16}, nil).Extract(n)
	require.NoError(t, err)
	require.Len(t, res.UVMaps, 2)
	assert.Len(t, res.UVMaps[0].Triangles, 1)
	assert.Len(t, res.UVMaps[1].Triangles, 1)
	assert.Equal(t, 1, res.UVMaps[1].Material)
}

func TestExtractDeterministic(t *testing.T) {
	e := New(Options{UVMapResolution: 64, ShowGrid: true}, nil)
	a, err := e.Extract(quad("a"))
	require.NoError(t, err)
	b, err := e.Extract(quad("a"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a.UVMaps[0].Image.Pix, b.UVMaps[0].Image.Pix))
}

func TestExtractBusy(t *testing.T) {
	e := New(DefaultOptions(), nil)
	e.busy.Store(true)
	_, err := e.Extract(quad("x"))
	assert.ErrorIs(t, err, ErrBusy)

	e.busy.Store(false)
	_, err = e.Extract(quad("x"))
	assert.NoError(t, err)
}

func TestExtractDoesNotMutateScene(t *testing.T) {
	n := quad("ro")
	mat := n.Mesh.Materials[0]
	_, err := New(DefaultOptions(), nil).Extract(n)
	require.NoError(t, err)
	assert.Nil(t, mat.Map)
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, mat.BaseColor)
}

func TestExtractNil(t *testing.T) {
	_, err := New(DefaultOptions(), nil).Extract(nil)
	assert.ErrorIs(t, err, ErrNilScene)
}
