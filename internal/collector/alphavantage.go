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
	"strconv"
	"strings"
	"time"

	"FxSentinel/internal/model"
)

const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

// AlphaVantage implements Transport against the Alpha Vantage query API.
type AlphaVantage struct {
	BaseURL string
	APIKey  string
	Market  string // quote currency for digital assets, e.g. USD
	Client  *http.Client
}

// NewAlphaVantage creates a transport with the given request timeout.
func NewAlphaVantage(baseURL, apiKey, market string, timeout time.Duration) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	if market == "" {
		market = "USD"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AlphaVantage{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Market:  strings.ToUpper(market),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

func (a *AlphaVantage) FetchDaily(ctx context.Context, inst model.Instrument) (model.Series, error) {
	params := url.Values{}
	var seriesKey string
	if inst.IsPair() {
		params.Set("function", "FX_DAILY")
		params.Set("from_symbol", inst.Base())
		params.Set("to_symbol", inst.Quote())
		params.Set("outputsize", "compact")
		seriesKey = "Time Series FX (Daily)"
	} else {
		params.Set("function", "DIGITAL_CURRENCY_DAILY")
		params.Set("symbol", inst.Base())
		params.Set("market", a.Market)
		seriesKey = "Time Series (Digital Currency Daily)"
	}

	payload, err := a.query(ctx, params)
	if err != nil {
		return nil, err
	}
	raw, ok := payload[seriesKey]
	if !ok {
		return nil, Permanentf("%s: response has no %q", inst, seriesKey)
	}
	var days map[string]map[string]string
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, Permanentf("%s: decode series: %w", inst, err)
	}

	series := make(model.Series, 0, len(days))
	for day, fields := range days {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, Permanentf("%s: bad date %q: %w", inst, day, err)
		}
		rate, err := a.field(fields, "4. close", "4a. close")
		if err != nil {
			return nil, Permanentf("%s %s: %w", inst, day, err)
		}
		q := model.Quote{Instrument: inst, Time: t, Rate: rate}
		// OHLC is optional; missing fields stay zero
		q.Open, _ = a.field(fields, "1. open", "1a. open")
		q.High, _ = a.field(fields, "2. high", "2a. high")
		q.Low, _ = a.field(fields, "3. low", "3a. low")
		series = append(series, q)
	}
	if len(series) == 0 {
		return nil, Permanentf("%s: empty series", inst)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	return series, nil
}

func (a *AlphaVantage) FetchQuote(ctx context.Context, inst model.Instrument) (model.Quote, error) {
	to := inst.Quote()
	if !inst.IsPair() {
		to = a.Market
	}
	params := url.Values{}
	params.Set("function", "CURRENCY_EXCHANGE_RATE")
	params.Set("from_currency", inst.Base())
	params.Set("to_currency", to)

	payload, err := a.query(ctx, params)
	if err != nil {
		return model.Quote{}, err
	}
	raw, ok := payload["Realtime Currency Exchange Rate"]
	if !ok {
		return model.Quote{}, Permanentf("%s: response has no exchange rate", inst)
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Quote{}, Permanentf("%s: decode exchange rate: %w", inst, err)
	}
	rate, err := parseRate(fields["5. Exchange Rate"])
	if err != nil {
		return model.Quote{}, Permanentf("%s: %w", inst, err)
	}
	t, err := time.Parse("2006-01-02 15:04:05", fields["6. Last Refreshed"])
	if err != nil {
		return model.Quote{}, Permanentf("%s: bad refresh time: %w", inst, err)
	}
	// Alpha Vantage reports the zone separately; it is UTC for every FX pair
	return model.Quote{Instrument: inst, Time: t.UTC(), Rate: rate}, nil
}

// query issues the request and returns the top-level JSON object.
// Provider error payloads are classified here.
func (a *AlphaVantage) query(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	params.Set("apikey", a.APIKey)
	endpoint := a.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, Permanentf("build request: %w", err)
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("%s: %w", params.Get("function"), err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read body: %w", err)}
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, Transientf("%s: status %d", params.Get("function"), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, Permanentf("%s: status %d, body: %s", params.Get("function"), resp.StatusCode, truncate(body, 200))
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, Permanentf("decode response: %w", err)
	}
	if msg, ok := payload["Error Message"]; ok {
		return nil, Permanentf("provider error: %s", unquote(msg))
	}
	// throttling notices come back as 200 with a Note or Information field
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := payload[key]; ok {
			return nil, Transientf("provider throttled: %s", unquote(msg))
		}
	}
	return payload, nil
}

// field looks up the first present key. Digital currency series suffix the
// key with the market, e.g. "4a. close (USD)".
func (a *AlphaVantage) field(fields map[string]string, keys ...string) (float64, error) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return parseRate(v)
		}
		if v, ok := fields[k+" ("+a.Market+")"]; ok {
			return parseRate(v)
		}
	}
	return 0, fmt.Errorf("missing field %q", keys[0])
}

func parseRate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("rate %q is not finite", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive rate %v", v)
	}
	return v, nil
}

func unquote(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
