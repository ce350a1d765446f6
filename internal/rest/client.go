package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bnf-quoter-bot/internal/order"
)

// APIError is an explicit rejection from the exchange: an HTTP error
// status carrying a Binance error code. Callers distinguish it from
// transport faults with errors.As.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error: http %d code %d: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	apiKey  string
	secret  string
	http    *http.Client
	log     *zap.Logger

	// Overridable for deterministic signing tests.
	now func() time.Time
}

func New(baseURL, apiKey, secret string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
		log:     log,
		now:     time.Now,
	}
}

type PlaceOrderRequest struct {
	Symbol        string
	Side          order.Side
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	ClientOrderID string
}

type OrderAck struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
}

// PlaceOrder submits a resting GTC limit order.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", req.Quantity.String())
	params.Set("price", req.Price.String())
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	var ack OrderAck
	if err := c.signed(ctx, http.MethodPost, "/fapi/v1/order", params, &ack); err != nil {
		return OrderAck{}, err
	}
	return ack, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	return c.signed(ctx, http.MethodDelete, "/fapi/v1/order", params, nil)
}

func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	return c.signed(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params, nil)
}

type AccountInfo struct {
	Positions []AccountPosition `json:"positions"`
}

type AccountPosition struct {
	Symbol      string          `json:"symbol"`
	PositionAmt decimal.Decimal `json:"positionAmt"`
}

func (c *Client) AccountInfo(ctx context.Context) (AccountInfo, error) {
	var info AccountInfo
	if err := c.signed(ctx, http.MethodGet, "/fapi/v2/account", url.Values{}, &info); err != nil {
		return AccountInfo{}, err
	}
	return info, nil
}

// PositionAmt returns the signed position for symbol, zero when absent.
func (info AccountInfo) PositionAmt(symbol string) decimal.Decimal {
	for _, pos := range info.Positions {
		if pos.Symbol == symbol {
			return pos.PositionAmt
		}
	}
	return decimal.Zero
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

func (c *Client) StartUserStream(ctx context.Context) (string, error) {
	var resp listenKeyResponse
	if err := c.keyed(ctx, http.MethodPost, "/fapi/v1/listenKey", &resp); err != nil {
		return "", err
	}
	return resp.ListenKey, nil
}

func (c *Client) KeepAliveUserStream(ctx context.Context) error {
	return c.keyed(ctx, http.MethodPut, "/fapi/v1/listenKey", nil)
}

// signed performs a SIGNED endpoint request: timestamp appended, the
// query string HMAC-SHA256 signed with the API secret, hex encoded.
func (c *Client) signed(ctx context.Context, method, path string, params url.Values, target any) error {
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + c.sign(query)
	return c.do(ctx, method, path+"?"+query, target)
}

func (c *Client) keyed(ctx context.Context, method, path string, target any) error {
	return c.do(ctx, method, path, target)
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, pathAndQuery string, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFromBody(resp)
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func apiErrorFromBody(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	apiErr := &APIError{Status: resp.StatusCode, Message: string(body)}
	var payload struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Msg != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Msg
	}
	return apiErr
}
