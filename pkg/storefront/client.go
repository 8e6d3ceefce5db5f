package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultRequestTimeout = 20 * time.Second

// ErrorKind classifies a checkout failure so callers can choose how to
// present it. A timeout is not a transport failure is not a rejected input.
type ErrorKind string

const (
	// KindValidation covers input the SDK or the server rejected.
	KindValidation ErrorKind = "validation"
	// KindTransport covers network failures other than a deadline.
	KindTransport ErrorKind = "transport"
	// KindTimeout covers requests that exceeded the per-call bound.
	KindTimeout ErrorKind = "timeout"
	// KindAPI covers non-validation errors reported by the server.
	KindAPI ErrorKind = "api"
)

// Error is the uniform failure type returned by every SDK operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Code    string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storefront: %s (%s)", e.Message, e.Code)
	}
	return "storefront: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Client talks to the harvestfield order API on behalf of one signed-in
// user. Every call carries a hard deadline and is issued exactly once; the
// SDK never retries on the caller's behalf.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
}

// ClientOption adjusts optional client behaviour.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestTimeout overrides the per-call deadline.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient builds a client rooted at baseURL, typically ending in /api/v1.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, &Error{Kind: KindValidation, Message: "base URL is required"}
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createOrderRequest struct {
	ConsumerName         string          `json:"consumerName,omitempty"`
	Items                []CartItem      `json:"items"`
	ShippingAddress      *Address        `json:"shippingAddress,omitempty"`
	PaymentMethod        string          `json:"paymentMethod"`
	DeliveryInstructions string          `json:"deliveryInstructions,omitempty"`
	ConsumerNotes        string          `json:"consumerNotes,omitempty"`
	OrderNumber          string          `json:"orderNumber,omitempty"`
}

// CreateOrderInput is the payload for CreateOrder.
type CreateOrderInput struct {
	ConsumerName         string
	Items                []CartItem
	ShippingAddress      Address
	PaymentMethod        string
	DeliveryInstructions string
	ConsumerNotes        string
	// OrderNumber is a client-generated fallback display number. The server
	// replaces it with the authoritative sequence when one can be issued.
	OrderNumber string
}

// CreateOrder submits a new order. Input problems the server would reject
// are caught locally and returned as KindValidation before any network call.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if len(input.Items) == 0 {
		return Order{}, &Error{Kind: KindValidation, Message: "cart is empty"}
	}
	if !input.ShippingAddress.complete() {
		return Order{}, &Error{Kind: KindValidation, Message: "shipping address is incomplete"}
	}
	if !validMethod(input.PaymentMethod) {
		return Order{}, &Error{Kind: KindValidation, Message: "unsupported payment method: " + input.PaymentMethod}
	}
	body := createOrderRequest{
		ConsumerName:         input.ConsumerName,
		Items:                input.Items,
		ShippingAddress:      &input.ShippingAddress,
		PaymentMethod:        strings.ToLower(strings.TrimSpace(input.PaymentMethod)),
		DeliveryInstructions: input.DeliveryInstructions,
		ConsumerNotes:        input.ConsumerNotes,
		OrderNumber:          input.OrderNumber,
	}
	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", body, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// GetOrder fetches one order visible to the caller.
func (c *Client) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, &Error{Kind: KindValidation, Message: "order id is required"}
	}
	var order Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// OrderList is one page of orders.
type OrderList struct {
	Orders        []Order `json:"orders"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// ListOrders fetches the caller's order history, newest first.
func (c *Client) ListOrders(ctx context.Context, pageSize int, pageToken string) (OrderList, error) {
	path := "/orders"
	params := make([]string, 0, 2)
	if pageSize > 0 {
		params = append(params, fmt.Sprintf("pageSize=%d", pageSize))
	}
	if pageToken != "" {
		params = append(params, "pageToken="+pageToken)
	}
	if len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}
	var list OrderList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return OrderList{}, err
	}
	return list, nil
}

type statusUpdateRequest struct {
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	ExpectedStatus string `json:"expectedStatus,omitempty"`
}

// UpdateOrderStatus moves an order to target. expectedStatus, when set,
// makes the transition conditional on the order still being in that state.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID, target, expectedStatus string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, &Error{Kind: KindValidation, Message: "order id is required"}
	}
	if strings.TrimSpace(target) == "" {
		return Order{}, &Error{Kind: KindValidation, Message: "target status is required"}
	}
	body := statusUpdateRequest{Status: target, ExpectedStatus: expectedStatus}
	var order Order
	if err := c.do(ctx, http.MethodPut, "/orders/"+orderID+"/status", body, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

type cancelOrderRequest struct {
	Reason         string `json:"reason,omitempty"`
	ExpectedStatus string `json:"expectedStatus,omitempty"`
}

// CancelOrder cancels an order with an optional reason.
func (c *Client) CancelOrder(ctx context.Context, orderID, reason, expectedStatus string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, &Error{Kind: KindValidation, Message: "order id is required"}
	}
	body := cancelOrderRequest{Reason: reason, ExpectedStatus: expectedStatus}
	var order Order
	if err := c.do(ctx, http.MethodPut, "/orders/"+orderID+"/cancel", body, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

type simulatePaymentRequest struct {
	OrderID        string          `json:"orderId"`
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentDetails *PaymentDetails `json:"paymentDetails,omitempty"`
}

// SimulatePayment runs the simulated charge for an order. A gateway decline
// comes back as a SimulationResult with Success false and a nil error.
func (c *Client) SimulatePayment(ctx context.Context, orderID, method string, details PaymentDetails) (SimulationResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return SimulationResult{}, &Error{Kind: KindValidation, Message: "order id is required"}
	}
	body := simulatePaymentRequest{
		OrderID:        orderID,
		PaymentMethod:  strings.ToLower(strings.TrimSpace(method)),
		PaymentDetails: &details,
	}
	var result SimulationResult
	if err := c.do(ctx, http.MethodPost, "/payments/simulate", body, &result); err != nil {
		return SimulationResult{}, err
	}
	return result, nil
}

type paymentMethodsResponse struct {
	Methods []PaymentMethod `json:"methods"`
}

// PaymentMethods fetches the server's payment method catalog.
func (c *Client) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	var resp paymentMethodsResponse
	if err := c.do(ctx, http.MethodGet, "/payments/methods", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Methods, nil
}

// ClearCart empties the caller's server-side cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, nil)
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Message: "encode request: " + err.Error(), Err: err}
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindValidation, Message: "build request: " + err.Error(), Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
		}
		return &Error{Kind: KindTransport, Message: "request failed: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeErrorResponse(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindTransport, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}

// decodeErrorResponse surfaces the server's message verbatim so the UI can
// show exactly what was rejected.
func decodeErrorResponse(resp *http.Response) error {
	kind := KindAPI
	if resp.StatusCode == http.StatusBadRequest {
		kind = KindValidation
	}
	var envelope errorEnvelope
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && json.Unmarshal(payload, &envelope) == nil && envelope.Message != "" {
		return &Error{Kind: kind, Message: envelope.Message, Status: resp.StatusCode, Code: envelope.Error}
	}
	return &Error{Kind: kind, Message: http.StatusText(resp.StatusCode), Status: resp.StatusCode}
}
