package studio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"path"

	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/animation"
	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/extract"
	"github.com/Faultbox/garment-studio/internal/material"
	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/internal/texture"
	"github.com/Faultbox/garment-studio/pkg/formats"
)

// ModelInfo describes an installed model.
type ModelInfo struct {
	Ref       string `json:"ref"`
	Meshes    int    `json:"meshes"`
	Materials int    `json:"materials"`
	Triangles int    `json:"triangles"`
}

// Status is a snapshot of the studio.
type Status struct {
	Model      string          `json:"model,omitempty"`
	Loading    bool            `json:"loading"`
	LoadError  string          `json:"loadError,omitempty"`
	Style      string          `json:"style,omitempty"`
	Background BackgroundInfo  `json:"background"`
	Overlays   []overlay.Kind  `json:"overlays"`
	Animation  animation.State `json:"animation"`
	Playing    bool            `json:"playing"`
	Recorder   capture.Status  `json:"recorder"`
	Extraction *ExtractionInfo `json:"extraction,omitempty"`
	Frames     uint64          `json:"frames"`
}

// BackgroundInfo describes the backdrop.
type BackgroundInfo struct {
	Type  scene.BackgroundType `json:"type"`
	Value string               `json:"value"`
}

// TextureInfo describes one extracted texture.
type TextureInfo struct {
	Index    int    `json:"index"`
	Node     string `json:"node"`
	Material string `json:"material"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Flat     bool   `json:"flat"`
}

// UVMapInfo describes one UV map.
type UVMapInfo struct {
	Index      int    `json:"index"`
	Node       string `json:"node"`
	Material   string `json:"material"`
	Resolution int    `json:"resolution"`
	Triangles  int    `json:"triangles"`
}

// ExtractionInfo summarizes an extraction pass.
type ExtractionInfo struct {
	Textures []TextureInfo `json:"textures"`
	UVMaps   []UVMapInfo   `json:"uvMaps"`
	Failures int           `json:"failures"`
	Error    string        `json:"error,omitempty"`
}

func (s *Studio) handle(req request) (any, error) {
	switch c := req.cmd.(type) {
	case LoadModel:
		return s.loadModel(req, c)
	case ApplyStyle:
		return nil, s.applyStyle(c)
	case ApplyBackground:
		return s.applyBackground(req, c)
	case AddContent:
		return s.addContent(req, c)
	case RemoveContent:
		if c.Kind != overlay.KindImage && c.Kind != overlay.KindText {
			return nil, fmt.Errorf("%w: overlay kind %q", ErrInvalidCommand, c.Kind)
		}
		s.placer.Remove(c.Kind)
		return nil, nil
	case SetAnimation:
		return nil, s.driver.Set(c.State)
	case ExportStill:
		return capture.ExportStill(s.ctx, s.source, c.Options)
	case StartRecording:
		return s.recorder.Begin(s.source)
	case StopRecording:
		return s.stopRecording(req)
	case RecordClip:
		return s.recorder.RecordClip(s.ctx, s.source, s.now, c.Length, c.Format)
	case CancelTranscode:
		return s.recorder.Cancel(), nil
	case Extract:
		return s.reextract()
	case QueryStatus:
		return s.status(), nil
	case QueryPresets:
		return s.driver.Registry().Presets(), nil
	case QueryExtraction:
		if s.extraction == nil {
			return nil, ErrNoModel
		}
		return describe(s.extraction), nil
	case ExtractionImage:
		return s.extractionImage(c)
	case QueryClip:
		if s.clip == nil {
			return nil, fmt.Errorf("%w: no clip recorded", capture.ErrNotRecording)
		}
		return *s.clip, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidCommand, req.cmd)
}

func (s *Studio) loadModel(req request, c LoadModel) (any, error) {
	if c.Ref == "" {
		return nil, fmt.Errorf("%w: empty model reference", ErrInvalidCommand)
	}
	if s.loading {
		return nil, ErrLoadInProgress
	}
	s.loading = true

	s.async(func(ctx context.Context) func() {
		root, res, err := s.buildModel(ctx, c.Ref)
		return func() {
			s.loading = false
			if err != nil {
				s.loadErr = err
				s.log.Error("model load failed", zap.String("ref", c.Ref), zap.Error(err))
				req.done(nil, err)
				return
			}
			req.done(s.install(c.Ref, root, res), nil)
		}
	})
	return nil, errDeferred
}

// buildModel runs off the frame goroutine on a tree nothing else sees yet.
func (s *Studio) buildModel(ctx context.Context, ref string) (*scene.Node, *extract.Result, error) {
	data, err := s.assets.Fetch(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	model, err := formats.Load(path.Base(ref), data, s.assets.Resolver(ctx, ref))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", ref, err)
	}
	root, err := scene.Build(model, s.log)
	if err != nil {
		return nil, nil, fmt.Errorf("building %s: %w", ref, err)
	}

	// extraction sees the authored surfaces, before any style is applied
	res, err := s.extractor.Extract(root)
	if err != nil {
		s.log.Warn("extraction skipped", zap.String("ref", ref), zap.Error(err))
		res = nil
	}
	return root, res, nil
}

func (s *Studio) install(ref string, root *scene.Node, res *extract.Result) ModelInfo {
	if s.root != nil {
		s.root.Release()
	}
	s.root = root
	s.modelRef = ref
	s.loadErr = nil
	if res != nil {
		s.extraction.Release()
		s.extraction = res
	}
	if s.style != nil {
		if err := s.synth.Apply(*s.style, root.Materials()); err != nil {
			s.log.Warn("style not reapplied", zap.Error(err))
		}
	}
	s.camera.FitToBounds(root.Bounds())

	info := ModelInfo{Ref: ref, Meshes: len(root.Meshes()), Materials: len(root.Materials())}
	for _, n := range root.Meshes() {
		info.Triangles += n.Mesh.Geometry.IndexCount() / 3
	}
	s.log.Info("model installed",
		zap.String("ref", ref),
		zap.Int("meshes", info.Meshes),
		zap.Int("triangles", info.Triangles))
	return info
}

func (s *Studio) applyStyle(c ApplyStyle) error {
	spec, err := material.ParseColorSpec(c.Spec)
	if err != nil {
		return err
	}
	if s.root != nil {
		if err := s.synth.Apply(spec, s.root.Materials()); err != nil {
			return err
		}
	}
	s.style = &spec
	return nil
}

func (s *Studio) applyBackground(req request, c ApplyBackground) (any, error) {
	bg := scene.Background{Type: c.Type, Value: c.Value}
	switch c.Type {
	case scene.BackgroundColor:
		col, err := material.ParseColor(c.Value)
		if err != nil {
			return nil, err
		}
		bg.Color = col
	case scene.BackgroundEnvironment:
		col, err := scene.EnvironmentColor(c.Value)
		if err != nil {
			return nil, err
		}
		bg.Color = col
	case scene.BackgroundImage:
		if c.Value == "" {
			return nil, fmt.Errorf("%w: empty background image", ErrInvalidCommand)
		}
		s.async(func(ctx context.Context) func() {
			tex, err := s.loadImage(ctx, c.Value)
			return func() {
				if err != nil {
					req.done(nil, err)
					return
				}
				bg.Image = tex
				bg.Color = scene.DefaultBackground().Color
				s.setBackground(bg)
				req.done(nil, nil)
			}
		})
		return nil, errDeferred
	default:
		return nil, fmt.Errorf("%w: background type %q", ErrInvalidCommand, c.Type)
	}
	s.setBackground(bg)
	return nil, nil
}

func (s *Studio) loadImage(ctx context.Context, ref string) (*texture.Texture, error) {
	var (
		data []byte
		err  error
	)
	if overlay.IsDataURL(ref) {
		data, err = overlay.DecodeDataURL(ref)
	} else {
		data, err = s.assets.Fetch(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	img, err := texture.Decode(data)
	if err != nil {
		return nil, err
	}
	return texture.New(path.Base(ref), texture.ToRGBA(img), true), nil
}

func (s *Studio) setBackground(bg scene.Background) {
	if s.background.Image != bg.Image {
		s.background.Image.Release()
	}
	s.background = bg
}

func (s *Studio) addContent(req request, c AddContent) (any, error) {
	switch {
	case c.Image != nil && c.Text != nil, c.Image == nil && c.Text == nil:
		return nil, fmt.Errorf("%w: exactly one of image or text is required", ErrInvalidCommand)
	case c.Text != nil:
		return nil, s.placer.SetText(*c.Text)
	}

	content := *c.Image
	s.async(func(ctx context.Context) func() {
		bb, err := s.placer.RenderImage(ctx, content)
		return func() {
			if err == nil {
				s.placer.Set(bb)
			}
			req.done(nil, err)
		}
	})
	return nil, errDeferred
}

// stopRecording detaches the session on the frame goroutine and muxes it
// in the background; the reply carries the AVI.
func (s *Studio) stopRecording(req request) (any, error) {
	finish, err := s.recorder.Stop()
	if err != nil {
		return nil, err
	}
	s.async(func(context.Context) func() {
		avi, err := finish()
		return func() {
			if err != nil && req.reply == nil {
				s.log.Warn("recording not finalized", zap.Error(err))
			}
			req.done(avi, err)
		}
	})
	return nil, errDeferred
}

func (s *Studio) reextract() (any, error) {
	if s.root == nil {
		return nil, ErrNoModel
	}
	res, err := s.extractor.Extract(s.root)
	if err != nil {
		// the previous result stays in place
		return nil, err
	}
	s.extraction.Release()
	s.extraction = res
	return describe(res), nil
}

func describe(res *extract.Result) *ExtractionInfo {
	info := &ExtractionInfo{
		Textures: make([]TextureInfo, 0, len(res.Textures)),
		UVMaps:   make([]UVMapInfo, 0, len(res.UVMaps)),
		Failures: res.Failures,
	}
	if res.Err != nil {
		info.Error = res.Err.Error()
	}
	for i, t := range res.Textures {
		w, h := t.Texture.Size()
		info.Textures = append(info.Textures, TextureInfo{
			Index: i, Node: t.Node, Material: t.Name, Width: w, Height: h, Flat: t.Flat,
		})
	}
	for i, m := range res.UVMaps {
		info.UVMaps = append(info.UVMaps, UVMapInfo{
			Index: i, Node: m.Node, Material: m.Name, Resolution: m.Resolution, Triangles: len(m.Triangles),
		})
	}
	return info
}

func (s *Studio) extractionImage(c ExtractionImage) (any, error) {
	if s.extraction == nil {
		return nil, ErrNoModel
	}
	var img image.Image
	switch c.Kind {
	case ImageUVMap:
		if c.Index < 0 || c.Index >= len(s.extraction.UVMaps) {
			return nil, fmt.Errorf("%w: uv map %d", ErrNotFound, c.Index)
		}
		img = s.extraction.UVMaps[c.Index].Image
	case ImageTexture:
		if c.Index < 0 || c.Index >= len(s.extraction.Textures) {
			return nil, fmt.Errorf("%w: texture %d", ErrNotFound, c.Index)
		}
		tex := s.extraction.Textures[c.Index].Texture
		if tex.Image == nil {
			return nil, fmt.Errorf("%w: texture %d was released", ErrNotFound, c.Index)
		}
		img = tex.Image
	default:
		return nil, fmt.Errorf("%w: image kind %q", ErrInvalidCommand, c.Kind)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return capture.Blob{Data: buf.Bytes(), MIME: "image/png", Ext: "png"}, nil
}

func (s *Studio) status() Status {
	st := Status{
		Model:      s.modelRef,
		Loading:    s.loading,
		Background: BackgroundInfo{Type: s.background.Type, Value: s.background.Value},
		Overlays:   []overlay.Kind{},
		Animation:  s.driver.State(),
		Playing:    s.driver.Phase() == animation.Playing,
		Recorder:   s.recorder.Status(),
		Frames:     s.frames,
	}
	if s.loadErr != nil {
		st.LoadError = s.loadErr.Error()
	}
	if s.style != nil {
		st.Style = s.style.String()
	}
	for _, bb := range s.placer.Billboards() {
		st.Overlays = append(st.Overlays, bb.Kind)
	}
	if s.extraction != nil {
		st.Extraction = describe(s.extraction)
	}
	return st
}
