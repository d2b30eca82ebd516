package renderer

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/internal/texture"
)

// gpuMesh is an uploaded geometry: interleaved position, normal and UV
// plus a full index buffer. Non-indexed geometry gets sequential indices
// so group ranges address the same corners either way.
type gpuMesh struct {
	vao, vbo, ebo uint32
	count         int
	hasUVs        bool
}

const vertexStride = 8 // floats: position 3, normal 3, uv 2

func (r *Renderer) mesh(g *scene.Geometry) *gpuMesh {
	r.used[g] = true
	if m, ok := r.meshes[g]; ok {
		return m
	}

	normals := g.Normals()
	hasUVs := len(g.UVs) == len(g.Positions)
	verts := make([]float32, 0, len(g.Positions)*vertexStride)
	for i, p := range g.Positions {
		n := normals[i]
		var u, v float32
		if hasUVs {
			u, v = g.UVs[i].X, g.UVs[i].Y
		}
		verts = append(verts, p.X, p.Y, p.Z, n.X, n.Y, n.Z, u, v)
	}
	indices := make([]uint32, g.IndexCount())
	for i := range indices {
		indices[i] = g.Index(i)
	}

	m := &gpuMesh{count: len(indices), hasUVs: hasUVs}
	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	if len(verts) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.STATIC_DRAW)
	}
	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	if len(indices) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)
	}

	stride := int32(vertexStride * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 6*4)
	gl.EnableVertexAttribArray(2)
	gl.BindVertexArray(0)

	r.meshes[g] = m
	r.log.Debug("mesh uploaded", zap.Int("vertices", len(g.Positions)), zap.Int("indices", len(indices)))
	return m
}

func (r *Renderer) texture(t *texture.Texture) uint32 {
	r.used[t] = true
	if id, ok := r.textures[t]; ok {
		return id
	}

	w, h := t.Size()
	if w == 0 || h == 0 {
		return 0
	}
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(t.Image.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(t.Image.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrapMode(t.WrapS))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrapMode(t.WrapT))

	r.textures[t] = id
	t.OnRelease(func() {
		r.mu.Lock()
		r.dead = append(r.dead, id)
		r.mu.Unlock()
	})
	return id
}

func wrapMode(w texture.Wrap) int32 {
	if w == texture.WrapRepeat {
		return gl.REPEAT
	}
	return gl.CLAMP_TO_EDGE
}

// collect deletes GPU textures whose source texture was released.
func (r *Renderer) collect() {
	r.mu.Lock()
	dead := r.dead
	r.dead = nil
	r.mu.Unlock()

	for _, id := range dead {
		gl.DeleteTextures(1, &id)
		for t, tid := range r.textures {
			if tid == id {
				delete(r.textures, t)
			}
		}
	}
}

// sweep frees meshes and borrowed textures not drawn this frame.
func (r *Renderer) sweep() {
	for g, m := range r.meshes {
		if r.used[g] {
			continue
		}
		gl.DeleteVertexArrays(1, &m.vao)
		gl.DeleteBuffers(1, &m.vbo)
		gl.DeleteBuffers(1, &m.ebo)
		delete(r.meshes, g)
	}
	for t, id := range r.textures {
		if r.used[t] || t.Owned() {
			continue
		}
		gl.DeleteTextures(1, &id)
		delete(r.textures, t)
	}
}

func (r *Renderer) createQuad() {
	vertices := []float32{
		-0.5, -0.5,
		0.5, -0.5,
		-0.5, 0.5,
		0.5, 0.5,
	}
	gl.GenVertexArrays(1, &r.quadVAO)
	gl.BindVertexArray(r.quadVAO)
	gl.GenBuffers(1, &r.quadVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 2*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)
}
