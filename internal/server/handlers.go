package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Faultbox/garment-studio/internal/animation"
	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/material"
	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/internal/studio"
	gmath "github.com/Faultbox/garment-studio/pkg/math"
)

var errBadBody = errors.New("invalid request body")

// ModelRequest is the body of POST /model.
type ModelRequest struct {
	Ref string `json:"ref"`
}

// StyleRequest is the body of POST /style. Spec holds a hex color or a
// linear-gradient string.
type StyleRequest struct {
	Spec string `json:"spec"`
}

// BackgroundRequest is the body of POST /background.
type BackgroundRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Offset is a 2D displacement in world units.
type Offset struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (o Offset) vec() gmath.Vec2 { return gmath.Vec2{X: o.X, Y: o.Y} }

// ImageRequest is the body of POST /content/image.
type ImageRequest struct {
	Source   string  `json:"source"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	Offset   Offset  `json:"offset"`
}

// TextRequest is the body of POST /content/text.
type TextRequest struct {
	Text   string  `json:"text"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
	Font   string  `json:"font"`
	Offset Offset  `json:"offset"`
}

// AnimationRequest is the body of POST /animation.
type AnimationRequest struct {
	Enabled bool     `json:"enabled"`
	Preset  string   `json:"preset"`
	Speed   *float64 `json:"speed"`
}

// StillRequest is the body of POST /export/still.
type StillRequest struct {
	Format     string  `json:"format"`
	Quality    float64 `json:"quality"`
	Resolution string  `json:"resolution"`
	Watermark  string  `json:"watermark"`
}

// ClipRequest is the body of POST /record/clip.
type ClipRequest struct {
	Seconds float64 `json:"seconds"`
	Format  string  `json:"format"`
}

// SessionResponse carries a recording session ID.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
}

// CancelResponse reports whether a recording or transcode was cancelled.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadBody, err))
		return false
	}
	return true
}

// run executes cmd and writes an error response on failure.
func (s *Server) run(w http.ResponseWriter, r *http.Request, cmd studio.Command) (any, bool) {
	v, err := s.studio.Do(r.Context(), cmd)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return v, true
}

func (s *Server) exec(w http.ResponseWriter, r *http.Request, cmd studio.Command) {
	if _, ok := s.run(w, r, cmd); ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	var req ModelRequest
	if !s.decode(w, r, &req) {
		return
	}
	if v, ok := s.run(w, r, studio.LoadModel{Ref: req.Ref}); ok {
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	var req StyleRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.exec(w, r, studio.ApplyStyle{Spec: req.Spec})
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	var req BackgroundRequest
	if !s.decode(w, r, &req) {
		return
	}
	typ, err := scene.ParseBackgroundType(req.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.exec(w, r, studio.ApplyBackground{Type: typ, Value: req.Value})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	req := ImageRequest{Scale: 1}
	if !s.decode(w, r, &req) {
		return
	}
	s.exec(w, r, studio.AddContent{Image: &overlay.ImageContent{
		Source:   req.Source,
		Scale:    req.Scale,
		Rotation: req.Rotation,
		Offset:   req.Offset.vec(),
	}})
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !s.decode(w, r, &req) {
		return
	}
	label := overlay.TextLabel{
		Text:   req.Text,
		SizePt: req.Size,
		Font:   req.Font,
		Offset: req.Offset.vec(),
		Color:  color.NRGBA{A: 0xff},
	}
	if req.Color != "" {
		c, err := material.ParseColor(req.Color)
		if err != nil {
			s.writeError(w, err)
			return
		}
		label.Color = c
	}
	s.exec(w, r, studio.AddContent{Text: &label})
}

func (s *Server) handleRemoveContent(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, studio.RemoveContent{Kind: overlay.Kind(chi.URLParam(r, "kind"))})
}

func (s *Server) handleAnimation(w http.ResponseWriter, r *http.Request) {
	var req AnimationRequest
	if !s.decode(w, r, &req) {
		return
	}
	state := animation.State{Enabled: req.Enabled, Preset: req.Preset, Speed: 1}
	if req.Speed != nil {
		state.Speed = *req.Speed
	}
	s.exec(w, r, studio.SetAnimation{State: state})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.run(w, r, studio.QueryPresets{}); ok {
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) writeBlob(w http.ResponseWriter, status int, blob capture.Blob) {
	w.Header().Set("Content-Type", blob.MIME)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", capture.Filename(s.opts.FilePrefix, blob.Ext, s.now())))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.WriteHeader(status)
	_, _ = w.Write(blob.Data)
}

func (s *Server) handleStill(w http.ResponseWriter, r *http.Request) {
	d := s.opts.Still
	req := StillRequest{Format: d.Format, Quality: d.Quality, Resolution: d.Resolution, Watermark: d.Watermark}
	if !s.decode(w, r, &req) {
		return
	}
	v, ok := s.run(w, r, studio.ExportStill{Options: capture.StillOptions{
		Format:       req.Format,
		Quality:      req.Quality,
		Resolution:   req.Resolution,
		Watermark:    req.Watermark,
		MaxDimension: d.MaxDimension,
	}})
	if ok {
		s.writeBlob(w, http.StatusOK, v.(capture.Blob))
	}
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.run(w, r, studio.StartRecording{}); ok {
		writeJSON(w, http.StatusOK, SessionResponse{SessionID: v.(string)})
	}
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.run(w, r, studio.StopRecording{}); ok {
		s.writeBlob(w, http.StatusOK, v.(capture.Blob))
	}
}

func (s *Server) handleRecordClip(w http.ResponseWriter, r *http.Request) {
	req := ClipRequest{Seconds: s.opts.ClipLength.Seconds(), Format: s.opts.ClipFormat}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Seconds <= 0 {
		s.writeError(w, fmt.Errorf("%w: clip length must be positive", errBadBody))
		return
	}
	if limit := s.opts.MaxClipLength.Seconds(); req.Seconds > limit {
		s.writeError(w, fmt.Errorf("%w: %gs clip, limit %gs", capture.ErrTooLarge, req.Seconds, limit))
		return
	}
	cmd := studio.RecordClip{
		Length: time.Duration(req.Seconds * float64(time.Second)),
		Format: req.Format,
	}
	if v, ok := s.run(w, r, cmd); ok {
		writeJSON(w, http.StatusAccepted, SessionResponse{SessionID: v.(string)})
	}
}

func (s *Server) handleClipDownload(w http.ResponseWriter, r *http.Request) {
	v, ok := s.run(w, r, studio.QueryClip{})
	if !ok {
		return
	}
	clip := v.(capture.Clip)
	if clip.Err != nil {
		s.writeError(w, clip.Err)
		return
	}
	s.writeBlob(w, http.StatusOK, clip.Blob)
}

func (s *Server) handleRecordCancel(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.run(w, r, studio.CancelTranscode{}); ok {
		writeJSON(w, http.StatusOK, CancelResponse{Cancelled: v.(bool)})
	}
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.run(w, r, studio.Extract{}); ok {
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.run(w, r, studio.QueryStatus{}); ok {
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) handleExtraction(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.run(w, r, studio.QueryExtraction{}); ok {
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) handleExtractionImage(kind studio.ImageKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: index %q", errBadBody, chi.URLParam(r, "index")))
			return
		}
		v, ok := s.run(w, r, studio.ExtractionImage{Kind: kind, Index: idx})
		if !ok {
			return
		}
		blob := v.(capture.Blob)
		w.Header().Set("Content-Type", blob.MIME)
		_, _ = w.Write(blob.Data)
	}
}
