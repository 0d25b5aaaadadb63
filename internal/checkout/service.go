package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/treat_shop/internal/catalog"
	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/internal/models"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

const thanksPath = "/thanks?success=true"

type Provider interface {
	GetPrice(ctx context.Context, id string) (*models.ProviderPrice, error)
	GetProduct(ctx context.Context, id string) (*models.ProviderProduct, error)
	ActivePrice(ctx context.Context, productID string) (*models.ProviderPrice, error)
	CreatePaymentLink(ctx context.Context, req models.PaymentLinkRequest) (string, error)
}

type DeliveryPricer interface {
	DeliveryPrice(ctx context.Context, kind catalog.DeliveryKind) (string, error)
}

type Item struct {
	PriceID  string `json:"priceId"`
	Quantity int64  `json:"quantity"`
}

type Request struct {
	Items    []Item
	Delivery catalog.DeliveryKind
	BaseURL  string
}

type CheckoutService struct {
	Provider         Provider
	Delivery         DeliveryPricer
	AllowedCountries []string
}

func validate(req Request) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("no items: %w", domain.ErrValidation)
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.PriceID) == "" {
			return fmt.Errorf("item %d: price id is required: %w", i, domain.ErrValidation)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("item %d: quantity must be at least 1: %w", i, domain.ErrValidation)
		}
	}
	switch req.Delivery {
	case "", catalog.DeliveryLocal, catalog.DeliveryShipping:
	default:
		return fmt.Errorf("unknown delivery method %q: %w", req.Delivery, domain.ErrValidation)
	}
	return nil
}

// Create re-checks every referenced product before asking the provider for a
// payment link. No link is created while any item is unavailable.
func (s *CheckoutService) Create(ctx context.Context, req Request) (string, error) {
	l := logging.FromContext(ctx).With("svc", "checkout.create")

	if err := validate(req); err != nil {
		return "", err
	}

	if err := s.recheck(ctx, req.Items); err != nil {
		return "", err
	}

	lines := make([]models.LineItem, 0, len(req.Items)+1)
	present := make(map[string]bool, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, models.LineItem{PriceID: it.PriceID, Quantity: it.Quantity})
		present[it.PriceID] = true
	}

	if req.Delivery != "" {
		priceID, err := s.Delivery.DeliveryPrice(ctx, req.Delivery)
		if err != nil {
			l.Error("delivery_price_failed", "delivery", req.Delivery, "error", err)
			return "", fmt.Errorf("%w: delivery price: %w", domain.ErrCheckoutFailed, err)
		}
		if !present[priceID] {
			lines = append(lines, models.LineItem{PriceID: priceID, Quantity: 1})
		}
	}

	url, err := s.Provider.CreatePaymentLink(ctx, models.PaymentLinkRequest{
		Lines:            lines,
		AllowedCountries: s.AllowedCountries,
		RedirectURL:      strings.TrimRight(req.BaseURL, "/") + thanksPath,
	})
	if err != nil {
		l.Error("payment_link_failed", "error", err)
		return "", fmt.Errorf("%w: %w", domain.ErrCheckoutFailed, err)
	}

	l.Info("checkout_created", "lines", len(lines), "delivery", req.Delivery)
	return url, nil
}

func (s *CheckoutService) recheck(ctx context.Context, items []Item) error {
	unavailable := make([]string, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			label, err := s.checkOne(gctx, it.PriceID)
			if err != nil {
				return err
			}
			unavailable[i] = label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCheckoutFailed, err)
	}

	var names []string
	for _, n := range unavailable {
		if n != "" {
			names = append(names, n)
		}
	}
	if len(names) > 0 {
		return &domain.ItemsUnavailableError{Items: names}
	}
	return nil
}

// checkOne returns the label of an unavailable item, or "" when it may be sold.
// A price that is still active but no longer the product's newest active
// price counts as unavailable.
func (s *CheckoutService) checkOne(ctx context.Context, priceID string) (string, error) {
	price, err := s.Provider.GetPrice(ctx, priceID)
	if errors.Is(err, domain.ErrNotFound) {
		return priceID, nil
	}
	if err != nil {
		return "", err
	}

	product, err := s.Provider.GetProduct(ctx, price.ProductID)
	if errors.Is(err, domain.ErrNotFound) {
		return price.ProductID, nil
	}
	if err != nil {
		return "", err
	}

	if !price.Active || !product.Orderable() {
		return product.DisplayName(), nil
	}

	current, err := s.Provider.ActivePrice(ctx, product.ID)
	if err != nil {
		return "", err
	}
	if current == nil || current.ID != price.ID {
		logging.FromContext(ctx).Warn("stale_price_rejected", "price_id", price.ID, "product_id", product.ID)
		return product.DisplayName(), nil
	}
	return "", nil
}
