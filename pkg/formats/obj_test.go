package formats

import (
	"errors"
	"testing"
)

const quadOBJ = `# unit quad
mtllib shirt.mtl
v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
vt 0 0
vt 1 0
vt 0 1
vt 1 1
usemtl cotton
f 1/1 2/2 3/3
f 2/2 4/4 3/3
`

const shirtMTL = `newmtl cotton
Kd 0.5 0.25 1.0
d 1
Pr 0.8
map_Kd -s 1 1 1 fabric.png
`

func TestParseOBJ_Quad(t *testing.T) {
	files := map[string][]byte{
		"shirt.mtl":  []byte(shirtMTL),
		"fabric.png": []byte("png-bytes"),
	}
	resolve := func(name string) ([]byte, error) {
		if data, ok := files[name]; ok {
			return data, nil
		}
		return nil, errors.New("not found")
	}

	m, err := ParseOBJ("quad.obj", []byte(quadOBJ), resolve)
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}

	if m.TriangleCount() != 2 {
		t.Errorf("expected 2 triangles, got %d", m.TriangleCount())
	}
	if len(m.Meshes) != 1 || len(m.Meshes[0].Primitives) != 1 {
		t.Fatalf("expected 1 mesh with 1 primitive, got %+v", m.Meshes)
	}

	prim := m.Meshes[0].Primitives[0]
	if len(prim.Positions) != 4 {
		t.Errorf("expected 4 unique vertices, got %d", len(prim.Positions))
	}
	if len(prim.UVs) != len(prim.Positions) {
		t.Errorf("UV count %d does not match vertex count %d", len(prim.UVs), len(prim.Positions))
	}
	want := []uint32{0, 1, 2, 1, 3, 2}
	for i, idx := range want {
		if prim.Indices[i] != idx {
			t.Errorf("index %d = %d, want %d", i, prim.Indices[i], idx)
		}
	}

	mat := m.Materials[prim.Material]
	if mat.Name != "cotton" {
		t.Errorf("expected material cotton, got %q", mat.Name)
	}
	if mat.BaseColor != [4]float32{0.5, 0.25, 1, 1} {
		t.Errorf("unexpected base color %v", mat.BaseColor)
	}
	if mat.Roughness != 0.8 {
		t.Errorf("expected roughness 0.8, got %v", mat.Roughness)
	}
	if mat.TextureName != "fabric.png" || string(mat.Texture) != "png-bytes" {
		t.Errorf("texture not resolved: name=%q data=%q", mat.TextureName, mat.Texture)
	}
}

func TestParseOBJ_FanAndNegativeIndices(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f -4 -3 -2 -1
`
	m, err := ParseOBJ("fan.obj", []byte(src), nil)
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	prim := m.Meshes[0].Primitives[0]
	if prim.UVs != nil {
		t.Error("expected no UVs")
	}
	if prim.Material != -1 {
		t.Errorf("expected no material, got %d", prim.Material)
	}
	if m.TriangleCount() != 2 {
		t.Errorf("quad should fan into 2 triangles, got %d", m.TriangleCount())
	}
}

func TestParseOBJ_MaterialGroups(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
usemtl front
f 1 2 3
usemtl back
f 3 2 1
usemtl front
f 1 3 2
`
	m, err := ParseOBJ("groups.obj", []byte(src), nil)
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	prims := m.Meshes[0].Primitives
	if len(prims) != 3 {
		t.Fatalf("expected 3 primitives, got %d", len(prims))
	}
	if len(m.Materials) != 2 {
		t.Errorf("expected 2 materials, got %d", len(m.Materials))
	}
	if prims[0].Material != prims[2].Material {
		t.Error("re-used material name should map to the same material")
	}
}

func TestParseOBJ_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"empty", "# nothing\n", ErrNoGeometry},
		{"index out of range", "v 0 0 0\nf 1 2 3\n", ErrIndexOutOfRange},
		{"bad vertex", "v 0 zero 0\n", ErrMalformedOBJ},
		{"short face", "v 0 0 0\nv 1 0 0\nf 1 2\n", ErrMalformedOBJ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ(tt.name, []byte(tt.src), nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_UnknownExtension(t *testing.T) {
	_, err := Load("shirt.fbx", nil, nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
