// Package mt5 implements broker.Gateway against an MT5 bridge: a small REST
// service running next to the MetaTrader terminal that exposes account,
// market and order endpoints. The wire format is the bridge's, not MT5's.
package mt5

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/market"
)

const defaultTimeout = 30 * time.Second

// Client is an MT5 bridge API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a bridge client. The token is sent as a bearer token on
// every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Ping verifies the bridge is reachable and the token is accepted. Called at
// startup so a dead bridge fails fast instead of inside the loop.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Connected bool `json:"connected"`
	}
	if err := c.get(ctx, "/v1/ping", nil, &out); err != nil {
		return fmt.Errorf("ping bridge: %w", err)
	}
	if !out.Connected {
		return fmt.Errorf("bridge reachable but terminal not connected")
	}
	return nil
}

func (c *Client) IsMarketOpen(ctx context.Context, symbol string) (bool, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var out struct {
		Open bool `json:"open"`
	}
	if err := c.get(ctx, "/v1/market/status", params, &out); err != nil {
		return false, fmt.Errorf("market status: %w", err)
	}
	return out.Open, nil
}

type accountResponse struct {
	Balance       float64 `json:"balance"`
	Equity        float64 `json:"equity"`
	Profit        float64 `json:"profit"`
	Margin        float64 `json:"margin"`
	MarginFree    float64 `json:"margin_free"`
	MarginLevel   float64 `json:"margin_level"`
	OpenPositions int     `json:"open_positions"`
}

func (c *Client) GetAccountSnapshot(ctx context.Context) (broker.AccountSnapshot, error) {
	var out accountResponse
	if err := c.get(ctx, "/v1/account", nil, &out); err != nil {
		return broker.AccountSnapshot{}, fmt.Errorf("account snapshot: %w", err)
	}

	snap := broker.AccountSnapshot{
		Balance:       out.Balance,
		Equity:        out.Equity,
		Profit:        out.Profit,
		Margin:        out.Margin,
		MarginFree:    out.MarginFree,
		MarginLevel:   out.MarginLevel,
		OpenPositions: out.OpenPositions,
	}
	// MT5 reports margin level as 0/infinity inconsistently when nothing is
	// open; normalize to 0 so the limiter's margin>0 guard applies.
	if snap.Margin <= 0 {
		snap.MarginLevel = 0
	}
	return snap, nil
}

type candleResponse struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"tick_volume"`
}

type marketResponse struct {
	Symbol  string           `json:"symbol"`
	Time    string           `json:"time"`
	Bid     float64          `json:"bid"`
	Ask     float64          `json:"ask"`
	Candles []candleResponse `json:"candles"`
}

func (c *Client) GetMarketSnapshot(ctx context.Context, symbol string) (market.Snapshot, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("count", "100")
	params.Set("timeframe", "M5")

	var out marketResponse
	if err := c.get(ctx, "/v1/candles", params, &out); err != nil {
		return market.Snapshot{}, fmt.Errorf("market snapshot %s: %w", symbol, err)
	}

	snap := market.Snapshot{
		Symbol: symbol,
		Bid:    out.Bid,
		Ask:    out.Ask,
	}
	if t, err := time.Parse(time.RFC3339, out.Time); err == nil {
		snap.Time = t
	}
	for _, cd := range out.Candles {
		t, err := time.Parse(time.RFC3339, cd.Time)
		if err != nil {
			return market.Snapshot{}, fmt.Errorf("parse candle time %q: %w", cd.Time, err)
		}
		snap.Candles = append(snap.Candles, market.Candle{
			Time:   t,
			Open:   cd.Open,
			High:   cd.High,
			Low:    cd.Low,
			Close:  cd.Close,
			Volume: cd.Volume,
		})
	}
	return snap, nil
}

type orderRequestBody struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Volume     float64  `json:"volume"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	Comment    string   `json:"comment,omitempty"`
}

type orderResponseBody struct {
	Success   bool    `json:"success"`
	OrderID   string  `json:"order_id"`
	FillPrice float64 `json:"fill_price"`
	Volume    float64 `json:"volume"`
	Error     string  `json:"error"`
}

func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	body := orderRequestBody{
		Symbol:     req.Symbol,
		Side:       string(req.Side),
		Volume:     req.Volume,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Comment:    req.ClientTag,
	}

	var out orderResponseBody
	if err := c.post(ctx, "/v1/orders", body, &out); err != nil {
		return broker.OrderResult{}, fmt.Errorf("place order: %w", err)
	}
	if !out.Success {
		return broker.OrderResult{}, fmt.Errorf("order rejected: %s", out.Error)
	}

	return broker.OrderResult{
		OrderID:   out.OrderID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Volume:    out.Volume,
		FillPrice: out.FillPrice,
		Time:      time.Now().UTC(),
	}, nil
}

type positionResponse struct {
	Ticket       string  `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
	Time         string  `json:"time"`
}

func (c *Client) ListOpenPositions(ctx context.Context) ([]broker.Position, error) {
	var out struct {
		Positions []positionResponse `json:"positions"`
	}
	if err := c.get(ctx, "/v1/positions", nil, &out); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	positions := make([]broker.Position, 0, len(out.Positions))
	for _, p := range out.Positions {
		pos := broker.Position{
			ID:           p.Ticket,
			Symbol:       p.Symbol,
			Side:         broker.Side(p.Side),
			Volume:       p.Volume,
			OpenPrice:    p.PriceOpen,
			CurrentPrice: p.PriceCurrent,
			Profit:       p.Profit,
		}
		if t, err := time.Parse(time.RFC3339, p.Time); err == nil {
			pos.OpenTime = t
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (c *Client) ClosePosition(ctx context.Context, id string) error {
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.post(ctx, "/v1/positions/"+url.PathEscape(id)+"/close", nil, &out); err != nil {
		return fmt.Errorf("close position %s: %w", id, err)
	}
	if !out.Success {
		return fmt.Errorf("close position %s rejected: %s", id, out.Error)
	}
	return nil
}

// CloseAllPositions closes each open position individually and tallies the
// outcome. A per-position failure does not stop the sweep.
func (c *Client) CloseAllPositions(ctx context.Context) (broker.CloseAllSummary, error) {
	positions, err := c.ListOpenPositions(ctx)
	if err != nil {
		return broker.CloseAllSummary{}, err
	}

	summary := broker.CloseAllSummary{Attempted: len(positions)}
	for _, p := range positions {
		if err := c.ClosePosition(ctx, p.ID); err != nil {
			summary.FailedIDs = append(summary.FailedIDs, p.ID)
			continue
		}
		summary.Succeeded++
	}
	return summary, nil
}

// Close releases the client. The bridge holds the terminal session, so there
// is nothing to tear down on this side.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	apiURL := c.baseURL + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bridge error (status %d): %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
