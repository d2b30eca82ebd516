package studio

import (
	"time"

	"github.com/Faultbox/garment-studio/internal/animation"
	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/scene"
)

// Command is a request applied on the frame goroutine. The set is closed.
type Command interface {
	command()
}

// LoadModel replaces the current model. Replies with ModelInfo once the
// model is parsed, extracted and installed.
type LoadModel struct {
	Ref string
}

// ApplyStyle recolors every material with a hex color or a CSS
// linear-gradient string.
type ApplyStyle struct {
	Spec string
}

// ApplyBackground sets the backdrop. Value is a color, an image reference
// or an environment preset name depending on Type.
type ApplyBackground struct {
	Type  scene.BackgroundType
	Value string
}

// AddContent installs an image or a text overlay, replacing the previous
// one of the same kind. Exactly one field must be set.
type AddContent struct {
	Image *overlay.ImageContent
	Text  *overlay.TextLabel
}

// RemoveContent drops an overlay.
type RemoveContent struct {
	Kind overlay.Kind
}

// SetAnimation replaces the animation state.
type SetAnimation struct {
	State animation.State
}

// ExportStill captures the current frame. Replies with capture.Blob.
type ExportStill struct {
	Options capture.StillOptions
}

// StartRecording opens a recording session. Replies with the session ID.
type StartRecording struct{}

// StopRecording ends the session. Replies with the AVI capture.Blob.
type StopRecording struct{}

// RecordClip records a fixed window and transcodes it in the background.
// Replies with the session ID; the clip is available through QueryClip.
type RecordClip struct {
	Length time.Duration
	Format string
}

// CancelTranscode aborts the active recording or transcode. Replies with
// a bool telling whether anything was cancelled.
type CancelTranscode struct{}

// Extract re-runs texture and UV extraction on the current model.
// Replies with ExtractionInfo.
type Extract struct{}

// QueryStatus replies with Status.
type QueryStatus struct{}

// QueryExtraction replies with ExtractionInfo for the latest pass.
type QueryExtraction struct{}

// ExtractionImage replies with a PNG capture.Blob of one extracted image.
type ExtractionImage struct {
	Kind  ImageKind
	Index int
}

// QueryClip replies with the latest finished capture.Clip.
type QueryClip struct{}

// QueryPresets replies with the sorted preset names of the studio's
// animation registry.
type QueryPresets struct{}

// ImageKind selects an extraction output list.
type ImageKind string

// Extraction image kinds.
const (
	ImageUVMap   ImageKind = "uvmap"
	ImageTexture ImageKind = "texture"
)

func (LoadModel) command()       {}
func (ApplyStyle) command()      {}
func (ApplyBackground) command() {}
func (AddContent) command()      {}
func (RemoveContent) command()   {}
func (SetAnimation) command()    {}
func (ExportStill) command()     {}
func (StartRecording) command()  {}
func (StopRecording) command()   {}
func (RecordClip) command()      {}
func (CancelTranscode) command() {}
func (Extract) command()         {}
func (QueryStatus) command()     {}
func (QueryExtraction) command() {}
func (ExtractionImage) command() {}
func (QueryClip) command()       {}
func (QueryPresets) command()    {}
