package stripeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"

	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/internal/models"
)

// The session and invoice payloads are decoded from the raw response so the
// collected_information and legacy shipping_details shapes are both read
// regardless of which the SDK version models.

type wireAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (w *wireAddress) toModel() *models.Address {
	if w == nil {
		return nil
	}
	a := &models.Address{
		Line1:      w.Line1,
		Line2:      w.Line2,
		City:       w.City,
		State:      w.State,
		PostalCode: w.PostalCode,
		Country:    w.Country,
	}
	if a.String() == "" {
		return nil
	}
	return a
}

type wireShipping struct {
	Address *wireAddress `json:"address"`
}

type wirePrice struct {
	Product  json.RawMessage `json:"product"`
	Nickname *string         `json:"nickname"`
}

type wireLine struct {
	Quantity    *int64     `json:"quantity"`
	Description *string    `json:"description"`
	Price       *wirePrice `json:"price"`
	Pricing     *struct {
		PriceDetails *struct {
			Product string `json:"product"`
		} `json:"price_details"`
	} `json:"pricing"`
}

type wireList struct {
	Data []wireLine `json:"data"`
}

type wireSession struct {
	ID              string          `json:"id"`
	AmountTotal     *int64          `json:"amount_total"`
	Currency        *string         `json:"currency"`
	Customer        json.RawMessage `json:"customer"`
	CustomerDetails *struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	} `json:"customer_details"`
	CollectedInformation *struct {
		ShippingDetails *wireShipping `json:"shipping_details"`
	} `json:"collected_information"`
	ShippingDetails *wireShipping `json:"shipping_details"`
	LineItems       *wireList     `json:"line_items"`
}

type wireInvoice struct {
	ID       string          `json:"id"`
	Customer json.RawMessage `json:"customer"`
	Lines    *wireList       `json:"lines"`
}

type wireCustomer struct {
	ID      string  `json:"id"`
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Deleted bool    `json:"deleted"`
}

type wireProduct struct {
	ID   string  `json:"id"`
	Name *string `json:"name"`
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeCustomer(raw json.RawMessage) *models.CustomerRef {
	if isNull(raw) {
		return nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return &models.CustomerRef{ID: id}
	}
	var c wireCustomer
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil
	}
	return &models.CustomerRef{
		ID:     c.ID,
		Record: &models.Customer{ID: c.ID, Name: c.Name, Email: c.Email, Deleted: c.Deleted},
	}
}

func decodeLine(w wireLine) models.OrderLine {
	line := models.OrderLine{Quantity: w.Quantity, Description: w.Description}
	if w.Price != nil {
		line.PriceDescription = w.Price.Nickname
		if !isNull(w.Price.Product) {
			var id string
			if err := json.Unmarshal(w.Price.Product, &id); err == nil {
				line.ProductID = &id
			} else {
				var p wireProduct
				if err := json.Unmarshal(w.Price.Product, &p); err == nil && p.ID != "" {
					line.ProductID = &p.ID
					line.ProductName = p.Name
				}
			}
		}
	}
	if line.ProductID == nil && w.Pricing != nil && w.Pricing.PriceDetails != nil && w.Pricing.PriceDetails.Product != "" {
		id := w.Pricing.PriceDetails.Product
		line.ProductID = &id
	}
	return line
}

func decodeLines(l *wireList) []models.OrderLine {
	if l == nil {
		return nil
	}
	out := make([]models.OrderLine, 0, len(l.Data))
	for _, w := range l.Data {
		out = append(out, decodeLine(w))
	}
	return out
}

func decodeSession(raw []byte) (*models.CheckoutSession, error) {
	var w wireSession
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w: %w", domain.ErrUpstream, err)
	}
	out := &models.CheckoutSession{
		ID:          w.ID,
		Customer:    decodeCustomer(w.Customer),
		Lines:       decodeLines(w.LineItems),
		AmountTotal: w.AmountTotal,
		Currency:    w.Currency,
	}
	if w.CustomerDetails != nil {
		out.CustomerName = w.CustomerDetails.Name
	}
	if ci := w.CollectedInformation; ci != nil && ci.ShippingDetails != nil {
		out.CollectedAddress = ci.ShippingDetails.Address.toModel()
	}
	if w.ShippingDetails != nil {
		out.ShippingAddress = w.ShippingDetails.Address.toModel()
	}
	return out, nil
}

func decodeInvoice(raw []byte) (*models.Invoice, error) {
	var w wireInvoice
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode invoice: %w: %w", domain.ErrUpstream, err)
	}
	return &models.Invoice{
		ID:       w.ID,
		Customer: decodeCustomer(w.Customer),
		Lines:    decodeLines(w.Lines),
	}, nil
}

func rawBody(r *stripe.APIResponse) ([]byte, error) {
	if r == nil || len(r.RawJSON) == 0 {
		return nil, fmt.Errorf("empty provider response: %w", domain.ErrUpstream)
	}
	return r.RawJSON, nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price.product")
	params.AddExpand("customer")

	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, mapErr("get checkout session", err)
	}
	raw, err := rawBody(s.LastResponse)
	if err != nil {
		return nil, err
	}
	return decodeSession(raw)
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	params.AddExpand("lines.data.price.product")
	params.AddExpand("customer")

	inv, err := c.api.Invoices.Get(id, params)
	if err != nil {
		return nil, mapErr("get invoice", err)
	}
	raw, err := rawBody(inv.LastResponse)
	if err != nil {
		return nil, err
	}
	return decodeInvoice(raw)
}
