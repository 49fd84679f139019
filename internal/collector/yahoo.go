package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"FxSentinel/internal/model"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo implements Transport using the Yahoo Finance chart API.
// It needs no API key and serves as a fallback provider.
type Yahoo struct {
	BaseURL string
	Market  string
	Range   string // history requested by FetchDaily, e.g. 3mo
	Client  *http.Client
}

// NewYahoo creates a Yahoo Finance transport.
func NewYahoo(baseURL, market string, timeout time.Duration) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if market == "" {
		market = "USD"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Yahoo{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Market:  strings.ToUpper(market),
		Range:   "3mo",
		Client:  &http.Client{Timeout: timeout},
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

// symbol maps EUR/USD to EURUSD=X and BTC to BTC-USD.
func (y *Yahoo) symbol(inst model.Instrument) string {
	if inst.IsPair() {
		return inst.Base() + inst.Quote() + "=X"
	}
	return inst.Base() + "-" + y.Market
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) FetchDaily(ctx context.Context, inst model.Instrument) (model.Series, error) {
	chart, err := y.fetchChart(ctx, inst, "1d", y.Range)
	if err != nil {
		return nil, err
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, Permanentf("%s: yahoo returned no quotes", inst)
	}
	q := result.Indicators.Quote[0]

	series := make(model.Series, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(q.Close, i)
		if c <= 0 {
			continue // null bars on holidays
		}
		series = append(series, model.Quote{
			Instrument: inst,
			Time:       time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Rate:       c,
			Open:       at(q.Open, i),
			High:       at(q.High, i),
			Low:        at(q.Low, i),
		})
	}
	if len(series) == 0 {
		return nil, Permanentf("%s: yahoo returned no data", inst)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	return series, nil
}

func (y *Yahoo) FetchQuote(ctx context.Context, inst model.Instrument) (model.Quote, error) {
	chart, err := y.fetchChart(ctx, inst, "1d", "1d")
	if err != nil {
		return model.Quote{}, err
	}
	meta := chart.Chart.Result[0].Meta
	if !validRate(meta.RegularMarketPrice) {
		return model.Quote{}, Permanentf("%s: yahoo returned no market price", inst)
	}
	return model.Quote{
		Instrument: inst,
		Time:       time.Unix(meta.RegularMarketTime, 0).UTC(),
		Rate:       meta.RegularMarketPrice,
	}, nil
}

func (y *Yahoo) fetchChart(ctx context.Context, inst model.Instrument, interval, rng string) (*yahooChart, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		y.BaseURL, url.PathEscape(y.symbol(inst)), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, Permanentf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.Client.Do(req)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("yahoo fetch: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("yahoo read body: %w", err)}
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, Transientf("yahoo: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, Permanentf("yahoo: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, Permanentf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, Permanentf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, Permanentf("%s: yahoo returned no result", inst)
	}
	return &chart, nil
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil || !validRate(*vals[i]) {
		return 0
	}
	return *vals[i]
}

func validRate(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

var _ Transport = (*Yahoo)(nil)
