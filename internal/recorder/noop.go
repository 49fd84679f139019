package recorder

import (
	"context"

	"FxSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Name() string                                             { return "noop" }
func (n *NoopRecorder) Consume(_ context.Context, _ *model.AnalysisReport) error { return nil }
func (n *NoopRecorder) Close() error                                             { return nil }
