package stripeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/internal/models"
)

const productListLimit = 100

type Client struct {
	api *client.API
}

func New(secretKey string) *Client {
	return &Client{api: client.New(secretKey, nil)}
}

// NewWithBackends points the client at custom backends, e.g. a local stub.
func NewWithBackends(secretKey string, backends *stripe.Backends) *Client {
	return &Client{api: client.New(secretKey, backends)}
}

// mapErr folds provider failures into the domain taxonomy; the cause stays in
// the chain for logs.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstream, err)
}

func toProduct(p *stripe.Product) *models.ProviderProduct {
	out := &models.ProviderProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Images:      p.Images,
		Active:      p.Active,
		Deleted:     p.Deleted,
		Metadata:    p.Metadata,
	}
	for _, f := range p.MarketingFeatures {
		if f == nil {
			continue
		}
		out.Features = append(out.Features, models.Feature{Name: f.Name})
	}
	return out
}

func toPrice(p *stripe.Price) *models.ProviderPrice {
	out := &models.ProviderPrice{
		ID:       p.ID,
		Currency: string(p.Currency),
		Active:   p.Active && !p.Deleted,
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.UnitAmount != 0 {
		amount := p.UnitAmount
		out.UnitAmount = &amount
	}
	return out
}

func (c *Client) ListProducts(ctx context.Context) ([]models.ProviderProduct, error) {
	params := &stripe.ProductListParams{Active: stripe.Bool(true)}
	params.Context = ctx
	params.Limit = stripe.Int64(productListLimit)
	params.Single = true

	var out []models.ProviderProduct
	it := c.api.Products.List(params)
	for it.Next() {
		out = append(out, *toProduct(it.Product()))
	}
	if err := it.Err(); err != nil {
		return nil, mapErr("list products", err)
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*models.ProviderProduct, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx
	p, err := c.api.Products.Get(id, params)
	if err != nil {
		return nil, mapErr("get product", err)
	}
	return toProduct(p), nil
}

// ActivePrice returns the newest active price of a product, or nil when it
// has none.
func (c *Client) ActivePrice(ctx context.Context, productID string) (*models.ProviderPrice, error) {
	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	it := c.api.Prices.List(params)
	var price *models.ProviderPrice
	if it.Next() {
		price = toPrice(it.Price())
	}
	if err := it.Err(); err != nil {
		return nil, mapErr("list prices", err)
	}
	return price, nil
}

func (c *Client) GetPrice(ctx context.Context, id string) (*models.ProviderPrice, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx
	p, err := c.api.Prices.Get(id, params)
	if err != nil {
		return nil, mapErr("get price", err)
	}
	return toPrice(p), nil
}

func (c *Client) CreatePrice(ctx context.Context, productID string, amount int64, currency string) (*models.ProviderPrice, error) {
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(amount),
		Currency:   stripe.String(currency),
	}
	params.Context = ctx
	p, err := c.api.Prices.New(params)
	if err != nil {
		return nil, mapErr("create price", err)
	}
	return toPrice(p), nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, upd models.ProductUpdate) (*models.ProviderProduct, error) {
	params := &stripe.ProductParams{
		Name:         upd.Name,
		Description:  upd.Description,
		DefaultPrice: upd.DefaultPriceID,
	}
	params.Context = ctx
	if upd.ClearDescription {
		params.AddExtra("description", "")
	}
	if upd.SetFeatures {
		if len(upd.Features) == 0 {
			params.AddExtra("marketing_features", "")
		}
		for _, f := range upd.Features {
			params.MarketingFeatures = append(params.MarketingFeatures, &stripe.ProductMarketingFeatureParams{
				Name: stripe.String(f.Name),
			})
		}
	}

	p, err := c.api.Products.Update(id, params)
	if err != nil {
		return nil, mapErr("update product", err)
	}
	return toProduct(p), nil
}

func (c *Client) CreatePaymentLink(ctx context.Context, req models.PaymentLinkRequest) (string, error) {
	params := &stripe.PaymentLinkParams{
		AfterCompletion: &stripe.PaymentLinkAfterCompletionParams{
			Type: stripe.String(string(stripe.PaymentLinkAfterCompletionTypeRedirect)),
			Redirect: &stripe.PaymentLinkAfterCompletionRedirectParams{
				URL: stripe.String(req.RedirectURL),
			},
		},
	}
	params.Context = ctx
	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.PaymentLinkLineItemParams{
			Price:    stripe.String(l.PriceID),
			Quantity: stripe.Int64(l.Quantity),
		})
	}
	if len(req.AllowedCountries) > 0 {
		params.ShippingAddressCollection = &stripe.PaymentLinkShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.AllowedCountries),
		}
	}

	link, err := c.api.PaymentLinks.New(params)
	if err != nil {
		return "", mapErr("create payment link", err)
	}
	return link.URL, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cu, err := c.api.Customers.Get(id, params)
	if err != nil {
		return nil, mapErr("get customer", err)
	}
	out := &models.Customer{ID: cu.ID, Deleted: cu.Deleted}
	if cu.Name != "" {
		out.Name = stripe.String(cu.Name)
	}
	if cu.Email != "" {
		out.Email = stripe.String(cu.Email)
	}
	return out, nil
}
