package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/internal/models"
	"github.com/Skotchmaster/treat_shop/pkg/cache"
	"github.com/Skotchmaster/treat_shop/pkg/events"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

const (
	ListingCacheKey = "catalog:products"
	defaultCurrency = "usd"
	priceFanOut     = 8
)

type Provider interface {
	ListProducts(ctx context.Context) ([]models.ProviderProduct, error)
	GetProduct(ctx context.Context, id string) (*models.ProviderProduct, error)
	ActivePrice(ctx context.Context, productID string) (*models.ProviderPrice, error)
	CreatePrice(ctx context.Context, productID string, amount int64, currency string) (*models.ProviderPrice, error)
	UpdateProduct(ctx context.Context, id string, upd models.ProductUpdate) (*models.ProviderProduct, error)
}

type DeliveryKind string

const (
	DeliveryLocal    DeliveryKind = "local"
	DeliveryShipping DeliveryKind = "shipping"
)

type Settings struct {
	ShippingProductID      string
	LocalDeliveryProductID string
}

type CatalogService struct {
	Provider  Provider
	Cache     *cache.Cache[[]models.PublicProduct]
	Publisher events.Publisher
	Settings  Settings
}

// Patch is the admin edit. Nil fields are not touched; Price is in minor units.
type Patch struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	IsUnavailable *bool   `json:"isUnavailable"`
	Price         *int64  `json:"price"`
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.IsUnavailable == nil && p.Price == nil
}

func (s *CatalogService) isDeliveryProduct(id string) bool {
	return (s.Settings.ShippingProductID != "" && id == s.Settings.ShippingProductID) ||
		(s.Settings.LocalDeliveryProductID != "" && id == s.Settings.LocalDeliveryProductID)
}

// pricesFor fetches the active price of every product concurrently. The
// result is index-aligned with products.
func (s *CatalogService) pricesFor(ctx context.Context, products []models.ProviderProduct) ([]*models.ProviderPrice, error) {
	prices := make([]*models.ProviderPrice, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(priceFanOut)
	for i := range products {
		i := i
		g.Go(func() error {
			p, err := s.Provider.ActivePrice(gctx, products[i].ID)
			if err != nil {
				return fmt.Errorf("price for %s: %w", products[i].ID, err)
			}
			prices[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}

func toPublic(p models.ProviderProduct, price *models.ProviderPrice) models.PublicProduct {
	return models.PublicProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Images:      nonNilStrings(p.Images),
		Features:    nonNilFeatures(p.Features),
		Price:       *models.NewPriceView(price),
	}
}

func toAdmin(p models.ProviderProduct, price *models.ProviderPrice) models.AdminProduct {
	return models.AdminProduct{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Images:        nonNilStrings(p.Images),
		Features:      nonNilFeatures(p.Features),
		IsUnavailable: p.Unavailable(),
		Archived:      p.Archived(),
		Price:         models.NewPriceView(price),
	}
}

func (s *CatalogService) fetchPublic(ctx context.Context) ([]models.PublicProduct, error) {
	all, err := s.Provider.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]models.ProviderProduct, 0, len(all))
	for _, p := range all {
		if s.isDeliveryProduct(p.ID) || !p.Orderable() {
			continue
		}
		visible = append(visible, p)
	}

	prices, err := s.pricesFor(ctx, visible)
	if err != nil {
		return nil, err
	}

	out := make([]models.PublicProduct, 0, len(visible))
	for i, p := range visible {
		if !prices[i].Usable() {
			continue
		}
		out = append(out, toPublic(p, prices[i]))
	}
	return out, nil
}

// ListPublic serves the shopper listing from cache, refilling it on a miss.
func (s *CatalogService) ListPublic(ctx context.Context) ([]models.PublicProduct, error) {
	if s.Cache != nil {
		if cached, ok := s.Cache.Get(ListingCacheKey); ok {
			return cached, nil
		}
	}

	products, err := s.fetchPublic(ctx)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		s.Cache.Set(ListingCacheKey, products)
	}
	return products, nil
}

func (s *CatalogService) ListAdmin(ctx context.Context) ([]models.AdminProduct, error) {
	all, err := s.Provider.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	listed := make([]models.ProviderProduct, 0, len(all))
	for _, p := range all {
		if s.isDeliveryProduct(p.ID) {
			continue
		}
		listed = append(listed, p)
	}

	prices, err := s.pricesFor(ctx, listed)
	if err != nil {
		return nil, err
	}

	out := make([]models.AdminProduct, 0, len(listed))
	for i, p := range listed {
		out = append(out, toAdmin(p, prices[i]))
	}
	return out, nil
}

// Get returns ErrNotFound for archived, unavailable and priceless products
// alike so shoppers cannot tell them apart.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.PublicProduct, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("product id is required: %w", domain.ErrValidation)
	}

	p, err := s.Provider.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.isDeliveryProduct(p.ID) || !p.Orderable() {
		return nil, fmt.Errorf("product %s not orderable: %w", id, domain.ErrNotFound)
	}

	price, err := s.Provider.ActivePrice(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !price.Usable() {
		return nil, fmt.Errorf("product %s has no usable price: %w", id, domain.ErrNotFound)
	}

	out := toPublic(*p, price)
	return &out, nil
}

func reconcileUnavailable(current []models.Feature, unavailable bool) ([]models.Feature, bool) {
	has := models.HasFeature(current, models.UnavailableTag)
	if has == unavailable {
		return current, false
	}

	next := make([]models.Feature, 0, len(current)+1)
	for _, f := range current {
		if f.Name == "" || f.Name == models.UnavailableTag {
			continue
		}
		next = append(next, f)
	}
	if unavailable {
		next = append(next, models.Feature{Name: models.UnavailableTag})
	}
	return next, true
}

func (s *CatalogService) Update(ctx context.Context, id string, patch Patch) (*models.AdminProduct, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.update", "product_id", id)

	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("product id is required: %w", domain.ErrValidation)
	}
	if patch.Empty() {
		return nil, domain.ErrNoOp
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("name cannot be empty: %w", domain.ErrValidation)
	}
	if patch.Price != nil && *patch.Price <= 0 {
		return nil, fmt.Errorf("price must be positive: %w", domain.ErrValidation)
	}

	current, err := s.Provider.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	var upd models.ProductUpdate
	if patch.Name != nil {
		upd.Name = patch.Name
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			upd.ClearDescription = true
		} else {
			upd.Description = patch.Description
		}
	}
	if patch.IsUnavailable != nil {
		if features, changed := reconcileUnavailable(current.Features, *patch.IsUnavailable); changed {
			upd.SetFeatures = true
			upd.Features = features
		}
	}

	var newPrice *models.ProviderPrice
	if patch.Price != nil {
		currency := defaultCurrency
		prev, err := s.Provider.ActivePrice(ctx, id)
		if err != nil {
			return nil, err
		}
		if prev != nil && prev.Currency != "" {
			currency = prev.Currency
		}
		newPrice, err = s.Provider.CreatePrice(ctx, id, *patch.Price, currency)
		if err != nil {
			return nil, err
		}
		upd.DefaultPriceID = &newPrice.ID
	}

	updated := current
	if !upd.Empty() {
		updated, err = s.Provider.UpdateProduct(ctx, id, upd)
		if err != nil {
			return nil, err
		}
	}

	if s.Cache != nil {
		s.Cache.Invalidate(ListingCacheKey)
	}

	price := newPrice
	if price == nil {
		if price, err = s.Provider.ActivePrice(ctx, id); err != nil {
			l.Warn("price_lookup_failed", "error", err)
			price = nil
		}
	}

	out := toAdmin(*updated, price)
	s.publish(ctx, out)
	l.Info("product_updated", "unavailable", out.IsUnavailable, "new_price", newPrice != nil)
	return &out, nil
}

func (s *CatalogService) publish(ctx context.Context, p models.AdminProduct) {
	if s.Publisher == nil {
		return
	}
	priceID := ""
	if p.Price != nil {
		priceID = p.Price.ID
	}
	ev := events.NewProductUpdated(p.ID, p.Name, p.IsUnavailable, priceID)
	if err := s.Publisher.PublishEvent(ctx, events.TopicProducts, p.ID, ev); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", events.TopicProducts, "error", err)
	}
}

func (s *CatalogService) DeliveryPrice(ctx context.Context, kind DeliveryKind) (string, error) {
	var productID string
	switch kind {
	case DeliveryLocal:
		productID = s.Settings.LocalDeliveryProductID
	case DeliveryShipping:
		productID = s.Settings.ShippingProductID
	default:
		return "", fmt.Errorf("unknown delivery kind %q: %w", kind, domain.ErrValidation)
	}
	if productID == "" {
		return "", fmt.Errorf("%s delivery product id: %w", kind, domain.ErrNotConfigured)
	}

	price, err := s.Provider.ActivePrice(ctx, productID)
	if err != nil {
		return "", err
	}
	if price == nil {
		return "", fmt.Errorf("%s delivery price: %w", kind, domain.ErrNotFound)
	}
	return price.ID, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilFeatures(v []models.Feature) []models.Feature {
	if v == nil {
		return []models.Feature{}
	}
	return v
}
