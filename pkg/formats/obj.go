package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// OBJ errors.
var (
	ErrMalformedOBJ = errors.New("malformed OBJ statement")
)

// objKey identifies a unique position/texcoord pair.
type objKey struct {
	v, vt int
}

type objParser struct {
	positions [][3]float32
	texcoords [][2]float32

	model     *Model
	materials map[string]int
	resolve   Resolver

	prim  *Primitive
	index map[objKey]uint32
	line  int
}

// ParseOBJ parses a Wavefront OBJ file. Faces are fan-triangulated and
// vertices are de-duplicated per position/texcoord pair. Material libraries
// are fetched through resolve; a nil resolve skips them.
func ParseOBJ(name string, data []byte, resolve Resolver) (*Model, error) {
	p := &objParser{
		model:     &Model{Name: name},
		materials: make(map[string]int),
		resolve:   resolve,
	}
	p.model.Meshes = []Mesh{{Name: name}}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		p.line++
		if err := p.statement(sc.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}
	p.flush()

	if p.model.TriangleCount() == 0 {
		return nil, ErrNoGeometry
	}
	p.model.Nodes = []Node{identityNode(name, 0)}
	p.model.Roots = []int{0}
	return p.model, nil
}

func (p *objParser) statement(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, [3]float32{v[0], v[1], v[2]})
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		p.texcoords = append(p.texcoords, [2]float32{v[0], v[1]})
	case "f":
		return p.face(fields[1:])
	case "usemtl":
		if len(fields) < 2 {
			return fmt.Errorf("%w: usemtl without name", ErrMalformedOBJ)
		}
		p.flush()
		p.begin(p.material(fields[1]))
	case "mtllib":
		for _, lib := range fields[1:] {
			p.loadLibrary(lib)
		}
	}
	// vn, o, g, s and others do not affect the texture layout.
	return nil
}

// material returns the index of a named material, creating a placeholder
// when the library did not define it.
func (p *objParser) material(name string) int {
	if idx, ok := p.materials[name]; ok {
		return idx
	}
	p.model.Materials = append(p.model.Materials, defaultMaterial(name))
	idx := len(p.model.Materials) - 1
	p.materials[name] = idx
	return idx
}

func (p *objParser) loadLibrary(name string) {
	if p.resolve == nil {
		return
	}
	data, err := p.resolve(name)
	if err != nil {
		// A missing library leaves placeholder materials in place.
		return
	}
	for _, m := range ParseMTL(data) {
		if m.TextureName != "" && m.Texture == nil {
			m.Texture, _ = p.resolve(m.TextureName)
		}
		if idx, ok := p.materials[m.Name]; ok {
			p.model.Materials[idx] = m
			continue
		}
		p.model.Materials = append(p.model.Materials, m)
		p.materials[m.Name] = len(p.model.Materials) - 1
	}
}

func (p *objParser) begin(material int) {
	p.prim = &Primitive{Material: material}
	p.index = make(map[objKey]uint32)
}

func (p *objParser) flush() {
	if p.prim == nil || len(p.prim.Indices) == 0 {
		p.prim = nil
		return
	}
	mesh := &p.model.Meshes[0]
	mesh.Primitives = append(mesh.Primitives, *p.prim)
	p.prim = nil
}

func (p *objParser) face(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("%w: face with %d vertices", ErrMalformedOBJ, len(refs))
	}
	if p.prim == nil {
		p.begin(-1)
	}

	corners := make([]uint32, len(refs))
	for i, ref := range refs {
		key, err := p.ref(ref)
		if err != nil {
			return err
		}
		corners[i] = p.vertex(key)
	}

	for i := 1; i+1 < len(corners); i++ {
		p.prim.Indices = append(p.prim.Indices, corners[0], corners[i], corners[i+1])
	}
	return nil
}

// ref resolves a "v", "v/vt", "v//vn" or "v/vt/vn" reference to
// zero-based indices. Negative indices count back from the end.
func (p *objParser) ref(s string) (objKey, error) {
	parts := strings.Split(s, "/")
	v, err := resolveIndex(parts[0], len(p.positions))
	if err != nil {
		return objKey{}, err
	}
	key := objKey{v: v, vt: -1}
	if len(parts) > 1 && parts[1] != "" {
		if key.vt, err = resolveIndex(parts[1], len(p.texcoords)); err != nil {
			return objKey{}, err
		}
	}
	return key, nil
}

func (p *objParser) vertex(key objKey) uint32 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := uint32(len(p.prim.Positions))
	p.prim.Positions = append(p.prim.Positions, p.positions[key.v])
	switch {
	case key.vt >= 0:
		if p.prim.UVs == nil {
			p.prim.UVs = make([][2]float32, idx, idx+1)
		}
		p.prim.UVs = append(p.prim.UVs, p.texcoords[key.vt])
	case p.prim.UVs != nil:
		p.prim.UVs = append(p.prim.UVs, [2]float32{})
	}
	p.index[key] = idx
	return idx
}

func resolveIndex(s string, count int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrMalformedOBJ, s)
	}
	if n < 0 {
		n = count + n
	} else {
		n--
	}
	if n < 0 || n >= count {
		return 0, fmt.Errorf("%w: %s (have %d)", ErrIndexOutOfRange, s, count)
	}
	return n, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("%w: expected %d components, got %d", ErrMalformedOBJ, n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOBJ, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// ParseMTL parses a material library. Unknown statements are ignored.
// Texture bytes are not loaded; TextureName holds the map_Kd reference.
func ParseMTL(data []byte) []Material {
	var (
		out []Material
		cur *Material
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if fields[0] == "newmtl" && len(fields) > 1 {
			out = append(out, defaultMaterial(fields[1]))
			cur = &out[len(out)-1]
			continue
		}
		if cur == nil {
			continue
		}
		switch fields[0] {
		case "Kd":
			if v, err := parseFloats(fields[1:], 3); err == nil {
				cur.BaseColor[0], cur.BaseColor[1], cur.BaseColor[2] = v[0], v[1], v[2]
			}
		case "d":
			if v, err := parseFloats(fields[1:], 1); err == nil {
				cur.BaseColor[3] = v[0]
			}
		case "Pr":
			if v, err := parseFloats(fields[1:], 1); err == nil {
				cur.Roughness = v[0]
			}
		case "Pm":
			if v, err := parseFloats(fields[1:], 1); err == nil {
				cur.Metalness = v[0]
			}
		case "map_Kd":
			// options such as -s precede the file name, which comes last
			cur.TextureName = fields[len(fields)-1]
		}
	}
	return out
}
