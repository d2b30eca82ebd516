package capture

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Faultbox/garment-studio/internal/capture"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Instruments are created against the global provider, which is a no-op
// until the host installs one.
var (
	framesCounter, _ = meter().Int64Counter(
		"capture.frames.captured",
		metric.WithDescription("Frames sampled into recording sessions"),
	)
	stillsCounter, _ = meter().Int64Counter(
		"capture.stills.exported",
		metric.WithDescription("Still images exported"),
	)
	transcodeHistogram, _ = meter().Float64Histogram(
		"capture.transcode.duration",
		metric.WithDescription("Time spent transcoding clips"),
		metric.WithUnit("s"),
	)
)

func framesCaptured(ctx context.Context) {
	if framesCounter != nil {
		framesCounter.Add(ctx, 1)
	}
}

func stillsExported(ctx context.Context, format string) {
	if stillsCounter != nil {
		stillsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
	}
}

func transcodeFinished(ctx context.Context, format string, d time.Duration, ok bool) {
	if transcodeHistogram != nil {
		transcodeHistogram.Record(ctx, d.Seconds(), metric.WithAttributes(
			attribute.String("format", format),
			attribute.Bool("success", ok),
		))
	}
}
