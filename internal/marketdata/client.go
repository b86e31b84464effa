// Package marketdata implements the collab.MarketData collaborator: a
// paginated resty client fetching historical OHLCV candles, following a
// fetch-all-pages idiom shared with internal/chainclient's resty setup.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"clmmstrat/internal/collab"
)

// rawCandle is the JSON shape returned by the candle-history endpoint.
type rawCandle struct {
	StartTS int64  `json:"t"`
	Open    string `json:"o"`
	High    string `json:"h"`
	Low     string `json:"l"`
	Close   string `json:"c"`
	Volume  string `json:"v"`
}

// Client fetches historical price candles over HTTP.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a market-data client pointed at baseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Client{http: httpClient, logger: logger.With("component", "marketdata_client")}
}

const pageLimit = 500

// PriceHistory fetches candles for the tokenA/tokenB pair between startTS
// and endTS at resolutionSecs granularity, paging through the endpoint
// until a short page signals the end of the range.
func (c *Client) PriceHistory(ctx context.Context, tokenA, tokenB string, startTS, endTS time.Time, resolutionSecs int) ([]collab.Candle, error) {
	var candles []collab.Candle
	cursor := startTS

	for cursor.Before(endTS) {
		var page []rawCandle
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"token_a":    tokenA,
				"token_b":    tokenB,
				"from":       strconv.FormatInt(cursor.Unix(), 10),
				"to":         strconv.FormatInt(endTS.Unix(), 10),
				"resolution": strconv.Itoa(resolutionSecs),
				"limit":      strconv.Itoa(pageLimit),
			}).
			SetResult(&page).
			Get("/candles")
		if err != nil {
			return nil, fmt.Errorf("fetch candles: %w", err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("fetch candles: status %d", resp.StatusCode())
		}

		if len(page) == 0 {
			break
		}

		for _, rc := range page {
			candle, err := convertCandle(rc)
			if err != nil {
				return nil, fmt.Errorf("convert candle: %w", err)
			}
			candles = append(candles, candle)
		}

		last := page[len(page)-1]
		next := time.Unix(last.StartTS, 0).UTC().Add(time.Duration(resolutionSecs) * time.Second)
		if !next.After(cursor) {
			break
		}
		cursor = next

		if len(page) < pageLimit {
			break
		}
	}

	c.logger.Info("fetched price history", "token_a", tokenA, "token_b", tokenB, "candles", len(candles))
	return candles, nil
}

func convertCandle(rc rawCandle) (collab.Candle, error) {
	open, err := decimal.NewFromString(rc.Open)
	if err != nil {
		return collab.Candle{}, fmt.Errorf("parse open: %w", err)
	}
	high, err := decimal.NewFromString(rc.High)
	if err != nil {
		return collab.Candle{}, fmt.Errorf("parse high: %w", err)
	}
	low, err := decimal.NewFromString(rc.Low)
	if err != nil {
		return collab.Candle{}, fmt.Errorf("parse low: %w", err)
	}
	closePrice, err := decimal.NewFromString(rc.Close)
	if err != nil {
		return collab.Candle{}, fmt.Errorf("parse close: %w", err)
	}
	volume, err := decimal.NewFromString(rc.Volume)
	if err != nil {
		return collab.Candle{}, fmt.Errorf("parse volume: %w", err)
	}

	return collab.Candle{
		StartTS: time.Unix(rc.StartTS, 0).UTC(),
		Open:    open,
		High:    high,
		Low:     low,
		Close:   closePrice,
		Volume:  volume,
	}, nil
}
