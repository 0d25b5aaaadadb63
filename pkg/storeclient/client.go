package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("storeclient: not found")
	ErrUnavailable = errors.New("storeclient: items unavailable")
)

// UnavailableError carries the items the storefront refused at checkout.
type UnavailableError struct {
	Items []string
}

func (e *UnavailableError) Error() string {
	return "items unavailable: " + strings.Join(e.Items, ", ")
}

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(storeURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(storeURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type Price struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	Price       Price    `json:"price"`
}

type CheckoutItem struct {
	PriceID  string `json:"priceId"`
	Quantity int64  `json:"quantity"`
}

type checkoutRequest struct {
	Items          []CheckoutItem `json:"items"`
	DeliveryMethod string         `json:"deliveryMethod,omitempty"`
}

type checkoutResponse struct {
	URL              string   `json:"url"`
	UnavailableItems []string `json:"unavailableItems"`
	Error            string   `json:"error"`
	Message          string   `json:"message"`
}

func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil && resp.StatusCode < 300 {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/products/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var p Product
	status, err := c.do(req, &p)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	case status != http.StatusOK:
		return nil, fmt.Errorf("get product %s: unexpected status %d", id, status)
	}
	return &p, nil
}

// CheckAvailable treats any non-200 answer or transport failure as
// unavailable.
func (c *Client) CheckAvailable(ctx context.Context, productID string) error {
	_, err := c.GetProduct(ctx, productID)
	return err
}

func (c *Client) CreateCheckout(ctx context.Context, items []CheckoutItem, delivery string) (string, error) {
	payload, err := json.Marshal(checkoutRequest{Items: items, DeliveryMethod: delivery})
	if err != nil {
		return "", fmt.Errorf("encode checkout: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/checkout", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out checkoutResponse
	status, err := c.do(req, &out)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusConflict:
		return "", &UnavailableError{Items: out.UnavailableItems}
	case status != http.StatusOK:
		msg := out.Message
		if msg == "" {
			msg = out.Error
		}
		return "", fmt.Errorf("checkout: status %d: %s", status, msg)
	case out.URL == "":
		return "", fmt.Errorf("checkout: empty url in response")
	}
	return out.URL, nil
}
