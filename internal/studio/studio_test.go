package studio

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/garment-studio/internal/animation"
	"github.com/Faultbox/garment-studio/internal/assets"
	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/extract"
	"github.com/Faultbox/garment-studio/internal/material"
	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/scene"
)

const quadOBJ = `mtllib shirt.mtl
v -0.5 -0.5 0
v 0.5 -0.5 0
v 0.5 0.5 0
v -0.5 0.5 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
usemtl cloth
f 1/1 2/2 3/3 4/4
`

const quadMTL = `newmtl cloth
Kd 0.8 0.1 0.1
`

type harness struct {
	t   *testing.T
	s   *Studio
	now time.Time
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, nil)
}

// newHarnessWith lets a test adjust the options before the studio starts.
func newHarnessWith(t *testing.T, tweak func(*Options)) *harness {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shirt.obj"), []byte(quadOBJ), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shirt.mtl"), []byte(quadMTL), 0644))

	opts := Options{
		Assets: assets.NewManager(assets.Options{Dirs: []string{dir}}),
		Extraction: extract.Options{
			TextureResolution: 32,
			UVMapResolution:   64,
		},
		GradientResolution: 64,
		Recorder:           capture.Options{TempDir: t.TempDir()},
		PreviewWidth:       160,
		PreviewHeight:      120,
	}
	if tweak != nil {
		tweak(&opts)
	}
	s := New(opts)
	t.Cleanup(s.Close)
	return &harness{t: t, s: s, now: time.Unix(1000, 0)}
}

func (h *harness) frame() {
	h.now = h.now.Add(time.Second / 30)
	h.s.Frame(h.now)
}

// do sends cmd and pumps frames until the reply arrives.
func (h *harness) do(cmd Command) (any, error) {
	type result struct {
		v   any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := h.s.Do(context.Background(), cmd)
		ch <- result{v, err}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		select {
		case r := <-ch:
			return r.v, r.err
		default:
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("no reply to %T", cmd)
		}
		h.frame()
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) status() Status {
	v, err := h.do(QueryStatus{})
	require.NoError(h.t, err)
	return v.(Status)
}

func (h *harness) load() ModelInfo {
	v, err := h.do(LoadModel{Ref: "shirt.obj"})
	require.NoError(h.t, err)
	return v.(ModelInfo)
}

func TestLoadModel(t *testing.T) {
	h := newHarness(t)
	info := h.load()
	assert.Equal(t, ModelInfo{Ref: "shirt.obj", Meshes: 1, Materials: 1, Triangles: 2}, info)

	st := h.status()
	assert.Equal(t, "shirt.obj", st.Model)
	assert.False(t, st.Loading)
	require.NotNil(t, st.Extraction)
	require.Len(t, st.Extraction.Textures, 1)
	require.Len(t, st.Extraction.UVMaps, 1)
	assert.True(t, st.Extraction.Textures[0].Flat)
	assert.Equal(t, 32, st.Extraction.Textures[0].Width)
	assert.Equal(t, 2, st.Extraction.UVMaps[0].Triangles)
	assert.Equal(t, "cloth", st.Extraction.UVMaps[0].Material)

	mats := h.s.View().Root.Materials()
	require.Len(t, mats, 1)
	assert.Equal(t, uint8(204), mats[0].BaseColor.R)
}

func TestLoadModelMissing(t *testing.T) {
	h := newHarness(t)
	_, err := h.do(LoadModel{Ref: "nope.obj"})
	assert.ErrorIs(t, err, assets.ErrNotFound)

	st := h.status()
	assert.Empty(t, st.Model)
	assert.Contains(t, st.LoadError, "nope.obj")

	_, err = h.do(LoadModel{})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestApplyStyle(t *testing.T) {
	h := newHarness(t)
	h.load()
	mat := h.s.View().Root.Materials()[0]

	_, err := h.do(ApplyStyle{Spec: "linear-gradient(135deg, #ffffff 0%, #000000 100%)"})
	require.NoError(t, err)
	require.NotNil(t, mat.Map)
	assert.True(t, mat.Map.Owned())
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, mat.BaseColor)
	gradient := mat.Map

	_, err = h.do(ApplyStyle{Spec: "linear-gradient(90deg, #ff0000 0%"})
	assert.ErrorIs(t, err, material.ErrGradientParse)
	assert.Same(t, gradient, mat.Map, "malformed input keeps the current look")

	_, err = h.do(ApplyStyle{Spec: "#3366cc"})
	require.NoError(t, err)
	assert.Nil(t, mat.Map)
	assert.True(t, gradient.Released())
	assert.Equal(t, color.NRGBA{0x33, 0x66, 0xcc, 0xff}, mat.BaseColor)
	assert.Equal(t, "#3366cc", h.status().Style)
}

func TestStyleSurvivesModelReload(t *testing.T) {
	h := newHarness(t)
	_, err := h.do(ApplyStyle{Spec: "#00ff00"})
	require.NoError(t, err)

	h.load()
	mat := h.s.View().Root.Materials()[0]
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, mat.BaseColor)
}

func TestApplyBackground(t *testing.T) {
	h := newHarness(t)

	_, err := h.do(ApplyBackground{Type: scene.BackgroundColor, Value: "#102030"})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0x10, 0x20, 0x30, 0xff}, h.s.View().Background.Color)

	_, err = h.do(ApplyBackground{Type: scene.BackgroundEnvironment, Value: "sunset"})
	require.NoError(t, err)
	assert.Equal(t, BackgroundInfo{Type: scene.BackgroundEnvironment, Value: "sunset"}, h.status().Background)

	_, err = h.do(ApplyBackground{Type: scene.BackgroundEnvironment, Value: "mars"})
	assert.Error(t, err)

	_, err = h.do(ApplyBackground{Type: "video", Value: "x"})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = h.do(ApplyBackground{Type: scene.BackgroundImage, Value: pngDataURL(t, 8, 8)})
	require.NoError(t, err)
	bg := h.s.View().Background
	require.NotNil(t, bg.Image)
	assert.True(t, bg.Image.Owned())

	_, err = h.do(ApplyBackground{Type: scene.BackgroundColor, Value: "white"})
	require.NoError(t, err)
	assert.True(t, bg.Image.Released(), "replaced background image is released")
}

func pngDataURL(t *testing.T, w, h int) string {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestContentOverlays(t *testing.T) {
	h := newHarness(t)
	h.load()

	_, err := h.do(AddContent{Text: &overlay.TextLabel{Text: "Hello", SizePt: 24, Color: color.NRGBA{A: 255}}})
	require.NoError(t, err)
	_, err = h.do(AddContent{Image: &overlay.ImageContent{Source: pngDataURL(t, 40, 20), Scale: 1}})
	require.NoError(t, err)
	assert.Equal(t, []overlay.Kind{overlay.KindImage, overlay.KindText}, h.status().Overlays)

	_, err = h.do(RemoveContent{Kind: overlay.KindText})
	require.NoError(t, err)
	assert.Equal(t, []overlay.Kind{overlay.KindImage}, h.status().Overlays)

	_, err = h.do(AddContent{})
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = h.do(RemoveContent{Kind: "sticker"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = h.do(AddContent{Image: &overlay.ImageContent{Source: "missing.png", Scale: 1}})
	assert.ErrorIs(t, err, assets.ErrNotFound)
}

func TestAnimationDrivesRoot(t *testing.T) {
	h := newHarness(t)
	h.load()

	_, err := h.do(SetAnimation{State: animation.State{Enabled: true, Preset: animation.Bounce, Speed: 1}})
	require.NoError(t, err)

	start := h.s.start
	quarter := math.Pi / 4 * float64(time.Second)
	h.s.Frame(start.Add(time.Duration(quarter)))
	assert.InDelta(t, 0.5, h.s.View().Root.Transform.Position.Y, 1e-4)

	st := h.status()
	assert.True(t, st.Playing)
	assert.Equal(t, animation.Bounce, st.Animation.Preset)

	_, err = h.do(SetAnimation{State: animation.State{Enabled: true, Preset: animation.Float, Speed: 0}})
	assert.ErrorIs(t, err, animation.ErrBadSpeed)
}

func TestExportStillFromPreview(t *testing.T) {
	h := newHarness(t)
	h.load()

	v, err := h.do(ExportStill{Options: capture.StillOptions{Format: "png", Resolution: "80x60"}})
	require.NoError(t, err)
	blob := v.(capture.Blob)
	img, err := png.Decode(bytes.NewReader(blob.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 80, 60), img.Bounds())

	// the garment covers the center of the frame
	r, g, b, _ := img.At(40, 30).RGBA()
	assert.Greater(t, r>>8, g>>8)
	assert.Greater(t, r>>8, b>>8)
}

func TestRecording(t *testing.T) {
	h := newHarness(t)
	h.load()

	v, err := h.do(StartRecording{})
	require.NoError(t, err)
	id := v.(string)
	assert.NotEmpty(t, id)

	_, err = h.do(StartRecording{})
	assert.ErrorIs(t, err, capture.ErrRecordingUnavailable)

	for i := 0; i < 5; i++ {
		h.frame()
	}
	st := h.status()
	assert.Equal(t, capture.PhaseRecording, st.Recorder.Phase)
	assert.Positive(t, st.Recorder.Frames)

	v, err = h.do(StopRecording{})
	require.NoError(t, err)
	avi := v.(capture.Blob)
	assert.Equal(t, "RIFF", string(avi.Data[:4]))
	assert.Equal(t, 0, h.status().Recorder.Frames)

	v, err = h.do(CancelTranscode{})
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestRecordClipAVI(t *testing.T) {
	h := newHarness(t)
	h.load()

	_, err := h.do(QueryClip{})
	assert.Error(t, err)

	_, err = h.do(RecordClip{Length: 200 * time.Millisecond, Format: "avi"})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		h.frame()
	}

	// the clip is muxed off the frame loop
	var v any
	for deadline := time.Now().Add(5 * time.Second); ; {
		if v, err = h.do(QueryClip{}); err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, err)
	clip := v.(capture.Clip)
	require.NoError(t, clip.Err)
	assert.Equal(t, "avi", clip.Blob.Ext)
	assert.Equal(t, capture.PhaseDone, h.status().Recorder.Phase)
}

func TestExtraction(t *testing.T) {
	h := newHarness(t)
	_, err := h.do(Extract{})
	assert.ErrorIs(t, err, ErrNoModel)
	_, err = h.do(ExtractionImage{Kind: ImageUVMap})
	assert.ErrorIs(t, err, ErrNoModel)

	h.load()
	v, err := h.do(Extract{})
	require.NoError(t, err)
	info := v.(*ExtractionInfo)
	assert.Len(t, info.UVMaps, 1)

	v, err = h.do(ExtractionImage{Kind: ImageUVMap, Index: 0})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(v.(capture.Blob).Data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	_, err = h.do(ExtractionImage{Kind: ImageTexture, Index: 3})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.do(ExtractionImage{Kind: "normal"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestRecordClipTooLong(t *testing.T) {
	h := newHarnessWith(t, func(o *Options) {
		o.Recorder.MaxClipLength = time.Second
	})
	h.load()

	_, err := h.do(RecordClip{Length: 2 * time.Second, Format: "avi"})
	assert.ErrorIs(t, err, capture.ErrTooLarge)
	assert.Equal(t, capture.PhaseIdle, h.status().Recorder.Phase)
}

func TestQueryPresets(t *testing.T) {
	reg := animation.NewRegistry()
	require.NoError(t, reg.Register("wobble", func(tr *scene.Transform, t float64) {
		tr.Rotation.Z = float32(math.Sin(t))
	}))
	h := newHarnessWith(t, func(o *Options) { o.Animations = reg })

	v, err := h.do(QueryPresets{})
	require.NoError(t, err)
	assert.Contains(t, v.([]string), "wobble")
	assert.Contains(t, v.([]string), animation.Showcase)

	_, err = h.do(SetAnimation{State: animation.State{Enabled: true, Preset: "wobble", Speed: 1}})
	assert.NoError(t, err, "registered presets are selectable")
}

func TestOverlayLimits(t *testing.T) {
	h := newHarnessWith(t, func(o *Options) {
		o.OverlayLimits = overlay.Limits{MaxScale: 2, MaxTextPt: 48}
	})
	h.load()

	_, err := h.do(AddContent{Image: &overlay.ImageContent{Source: pngDataURL(t, 4, 4), Scale: 3}})
	assert.ErrorIs(t, err, overlay.ErrTooLarge)
	_, err = h.do(AddContent{Text: &overlay.TextLabel{Text: "Hello", SizePt: 72}})
	assert.ErrorIs(t, err, overlay.ErrTooLarge)
	assert.Empty(t, h.status().Overlays)
}

func TestCloseWaitsForRun(t *testing.T) {
	h := newHarness(t)
	returned := make(chan struct{})
	go func() {
		h.s.Run(context.Background(), 200)
		close(returned)
	}()
	v, err := h.s.Do(context.Background(), QueryStatus{})
	require.NoError(t, err, "Run drives the frame loop")
	assert.Positive(t, v.(Status).Frames)

	h.s.Close()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Run still active after Close")
	}

	// a Run started after Close returns at once
	h.s.Run(context.Background(), 200)
}

func TestSendAfterClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.Send(QueryStatus{}))
	h.frame()

	h.s.Close()
	assert.ErrorIs(t, h.s.Send(QueryStatus{}), ErrClosed)
	_, err := h.s.Do(context.Background(), QueryStatus{})
	assert.ErrorIs(t, err, ErrClosed)
}
