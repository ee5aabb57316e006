package feed

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
	"time"

	"github.com/vitos/momentum_backtest/internal/frame"
)

const (
	YahooBaseURL = "https://query1.finance.yahoo.com"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) momentum-backtest/1.0"
)

// Field names as the chart endpoint's consumers usually label them.
const (
	FieldOpen     = "Open"
	FieldHigh     = "High"
	FieldLow      = "Low"
	FieldClose    = "Close"
	FieldAdjClose = "Adj Close"
	FieldVolume   = "Volume"
)

type YahooFeed struct {
	baseURL string
	client  *http.Client
}

func NewYahooFeed(baseURL string, timeout time.Duration) *YahooFeed {
	if baseURL == "" {
		baseURL = YahooBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooFeed{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
				GMTOffset            int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *YahooFeed) sendRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		// the endpoint still returns a chart.error body on 404
		var result chartResponse
		if json.Unmarshal(body, &result) == nil && result.Chart.Error != nil {
			return nil, fmt.Errorf("yahoo chart error: %s: %s", result.Chart.Error.Code, result.Chart.Error.Description)
		}
		return nil, fmt.Errorf("yahoo API error: status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// FetchHistory returns daily bars for [start, end) as a layered frame with
// one (field, symbol) column per price field.
func (y *YahooFeed) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*frame.Frame, error) {
	query := url.Values{}
	query.Set("period1", strconv.FormatInt(start.Unix(), 10))
	query.Set("period2", strconv.FormatInt(end.Unix(), 10))
	query.Set("interval", "1d")
	query.Set("events", "history")
	query.Set("includeAdjustedClose", "true")

	body, err := y.sendRequest(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), query)
	if err != nil {
		return nil, err
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error: %s: %s", result.Chart.Error.Code, result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	res := result.Chart.Result[0]
	loc := exchangeLocation(res.Meta.ExchangeTimezoneName, res.Meta.GMTOffset)

	type row struct {
		date time.Time
		pos  int
	}
	var rows []row
	for i, ts := range res.Timestamp {
		local := time.Unix(ts, 0).In(loc)
		date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		if date.Before(start) || !date.Before(end) {
			continue
		}
		rows = append(rows, row{date: date, pos: i})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	index := make([]time.Time, len(rows))
	for i, r := range rows {
		index[i] = r.date
	}
	out := frame.New(index)

	pick := func(src []*float64) []float64 {
		vals := make([]float64, len(rows))
		for i, r := range rows {
			vals[i] = valueAt(src, r.pos)
		}
		return vals
	}

	type column struct {
		field string
		src   []*float64
	}
	var columns []column
	if len(res.Indicators.Quote) > 0 {
		q := res.Indicators.Quote[0]
		columns = append(columns,
			column{FieldOpen, q.Open},
			column{FieldHigh, q.High},
			column{FieldLow, q.Low},
			column{FieldClose, q.Close},
		)
		if len(res.Indicators.AdjClose) > 0 {
			columns = append(columns, column{FieldAdjClose, res.Indicators.AdjClose[0].AdjClose})
		}
		columns = append(columns, column{FieldVolume, q.Volume})
	}

	for _, c := range columns {
		if err := out.Set(frame.Key{Field: c.field, Symbol: symbol}, pick(c.src)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func valueAt(src []*float64, i int) float64 {
	if i >= len(src) || src[i] == nil {
		return math.NaN()
	}
	return *src[i]
}

func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", gmtOffset)
}
