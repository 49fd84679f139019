package recorder

import (
	"context"

	"FxSentinel/internal/model"
)

// Recorder persists analysis reports for later charting.
type Recorder interface {
	Name() string
	Consume(ctx context.Context, report *model.AnalysisReport) error
	Close() error
}

// TrendPoint is one persisted trend row of an instrument.
type TrendPoint struct {
	RunID         string
	GeneratedAt   int64
	Status        string
	LastPrice     float64
	Mean          float64
	StdDev        float64
	Change        float64
	Label         string
	AnnualizedVol float64
	MaxDrawdown   float64
}
