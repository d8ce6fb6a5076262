package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"StockSim/internal/domain/models"
	drepo "StockSim/internal/domain/repository"
	xhttp "StockSim/pkg/http"
	"StockSim/pkg/util"
)

// Client implements PriceSource backed by the Yahoo Finance chart API.
type Client struct {
	baseURL   string
	rng       string
	http      *xhttp.Client
	symbolMap map[string]string
}

var _ drepo.PriceSource = (*Client)(nil)

// New creates a Yahoo price source. rng is the default history range ("1y",
// "5y", ...) used when a ref has no From bound.
func New(baseURL, rng string, opts ...xhttp.ClientOption) *Client {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	if rng == "" {
		rng = "1y"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		rng:     rng,
		http:    xhttp.NewClient(opts...),
		symbolMap: map[string]string{
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
			"NDX":    "^NDX",
			"DJI":    "^DJI",
			"VIX":    "^VIX",
			"SPX500": "^GSPC",
		},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
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

func (c *Client) ticker(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if mapped, ok := c.symbolMap[s]; ok {
		return mapped
	}
	return s
}

// GetSeries fetches daily closes for ref.Symbol, ascending by date.
func (c *Client) GetSeries(ctx context.Context, ref models.SeriesRef) (models.HistoricalSeries, error) {
	if strings.TrimSpace(ref.Symbol) == "" {
		return models.HistoricalSeries{}, fmt.Errorf("yahoo: symbol is required")
	}

	q := map[string][]string{"interval": {"1d"}, "events": {"history"}}
	if ref.From != nil {
		to := time.Now()
		if ref.To != nil {
			to = ref.To.AddDate(0, 0, 1)
		}
		q["period1"] = []string{strconv.FormatInt(ref.From.Unix(), 10)}
		q["period2"] = []string{strconv.FormatInt(to.Unix(), 10)}
	} else {
		q["range"] = []string{c.rng}
	}

	var chart chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/v8/finance/chart/" + url.PathEscape(c.ticker(ref.Symbol)),
		QueryParams: q,
	}, &chart)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return models.HistoricalSeries{}, fmt.Errorf("yahoo symbol %s: %w", ref.Symbol, drepo.ErrNotFound)
		}
		return models.HistoricalSeries{}, fmt.Errorf("yahoo fetch: %w", err)
	}

	points, err := chart.points()
	if err != nil {
		return models.HistoricalSeries{}, fmt.Errorf("yahoo symbol %s: %w", ref.Symbol, err)
	}

	out := models.HistoricalSeries{Ref: ref, Points: points}
	return out.Window(ref.From, ref.To), nil
}

// points converts the chart into one point per trading day. Bars with a null
// close (halts, holidays in the index) are skipped; dates are the exchange
// local calendar day.
func (r chartResponse) points() ([]models.PricePoint, error) {
	if r.Chart.Error != nil {
		if r.Chart.Error.Code == "Not Found" {
			return nil, drepo.ErrNotFound
		}
		return nil, fmt.Errorf("api error: %s", r.Chart.Error.Description)
	}
	if len(r.Chart.Result) == 0 {
		return nil, drepo.ErrNotFound
	}

	res := r.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return []models.PricePoint{}, nil
	}
	closes := res.Indicators.Quote[0].Close

	byDay := make(map[time.Time]float64, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		day := util.StartOfDay(time.Unix(ts+res.Meta.GMTOffset, 0).UTC())
		byDay[day] = *closes[i] // the last bar of a day wins
	}

	points := make([]models.PricePoint, 0, len(byDay))
	for d, c := range byDay {
		points = append(points, models.PricePoint{Date: d, Close: c})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}
