package collector

import (
	"context"

	"FxSentinel/internal/model"
)

// Transport fetches quotes from a rate provider. Implementations classify
// their errors with TransientError or PermanentError.
type Transport interface {
	// FetchDaily returns the daily series of a pair or an asset, ascending by time.
	FetchDaily(ctx context.Context, inst model.Instrument) (model.Series, error)
	// FetchQuote returns the latest exchange rate.
	FetchQuote(ctx context.Context, inst model.Instrument) (model.Quote, error)
	Name() string
}
