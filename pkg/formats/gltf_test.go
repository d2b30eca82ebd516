package formats

import (
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

func TestFromGLTF(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2, 1, 3, 2})

	roughness := 0.4
	doc.Materials = []*gltf.Material{{
		Name: "jersey",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{1, 0, 0, 1},
			RoughnessFactor: &roughness,
		},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "shirt",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Material:   gltf.Index(0),
			Attributes: map[string]int{"POSITION": pos, "TEXCOORD_0": uv},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: "root", Mesh: gltf.Index(0), Translation: [3]float64{0, 1, 0}}}
	doc.Scenes[0].Nodes = []int{0}

	m, err := FromGLTF("shirt.glb", doc, nil)
	if err != nil {
		t.Fatalf("FromGLTF failed: %v", err)
	}

	if m.TriangleCount() != 2 {
		t.Errorf("expected 2 triangles, got %d", m.TriangleCount())
	}
	prim := m.Meshes[0].Primitives[0]
	if len(prim.UVs) != 4 || prim.UVs[3] != [2]float32{1, 1} {
		t.Errorf("unexpected UVs %v", prim.UVs)
	}
	if prim.Material != 0 {
		t.Errorf("expected material 0, got %d", prim.Material)
	}

	mat := m.Materials[0]
	if mat.BaseColor != [4]float32{1, 0, 0, 1} {
		t.Errorf("unexpected base color %v", mat.BaseColor)
	}
	if mat.Roughness != 0.4 {
		t.Errorf("expected roughness 0.4, got %v", mat.Roughness)
	}

	if len(m.Roots) != 1 || m.Roots[0] != 0 {
		t.Errorf("unexpected roots %v", m.Roots)
	}
	node := m.Nodes[0]
	if node.Translation != [3]float32{0, 1, 0} {
		t.Errorf("unexpected translation %v", node.Translation)
	}
	if node.Scale != [3]float32{1, 1, 1} || node.Rotation != [4]float32{0, 0, 0, 1} {
		t.Errorf("zero scale/rotation should default to identity, got %v %v", node.Scale, node.Rotation)
	}
	if node.Matrix != nil {
		t.Error("identity matrix should not be kept")
	}
}
