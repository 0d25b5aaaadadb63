package models

import (
	"strings"
)

// UnavailableTag is the marketing-feature name used as the "not orderable" flag.
const UnavailableTag = "UNAVAILABLE"

type Feature struct {
	Name string `json:"name"`
}

func HasFeature(features []Feature, name string) bool {
	for _, f := range features {
		if f.Name == name {
			return true
		}
	}
	return false
}

// ProviderProduct is a product record as the payments provider stores it.
type ProviderProduct struct {
	ID          string
	Name        string
	Description string
	Images      []string
	Features    []Feature
	Active      bool
	Deleted     bool
	Metadata    map[string]string
}

func (p *ProviderProduct) Archived() bool {
	return p.Deleted || !p.Active || p.Metadata["archived"] == "true"
}

func (p *ProviderProduct) Unavailable() bool {
	return HasFeature(p.Features, UnavailableTag)
}

func (p *ProviderProduct) Orderable() bool {
	return !p.Archived() && !p.Unavailable()
}

// DisplayName falls back to the id when the provider has no name.
func (p *ProviderProduct) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

type ProviderPrice struct {
	ID         string
	ProductID  string
	UnitAmount *int64
	Currency   string
	Active     bool
}

// Usable reports whether the price can be shown and charged.
func (p *ProviderPrice) Usable() bool {
	return p != nil && p.UnitAmount != nil && *p.UnitAmount > 0
}

// ProductUpdate is the provider-side patch. Nil fields are left untouched.
type ProductUpdate struct {
	Name             *string
	Description      *string
	ClearDescription bool
	SetFeatures      bool
	Features         []Feature
	DefaultPriceID   *string
}

func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && !u.ClearDescription && !u.SetFeatures && u.DefaultPriceID == nil
}

type PriceView struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewPriceView(p *ProviderPrice) *PriceView {
	if !p.Usable() {
		return nil
	}
	return &PriceView{ID: p.ID, Amount: *p.UnitAmount, Currency: p.Currency}
}

type PublicProduct struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Images      []string  `json:"images"`
	Features    []Feature `json:"marketing_features"`
	Price       PriceView `json:"price"`
}

type AdminProduct struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Images        []string   `json:"images"`
	Features      []Feature  `json:"marketing_features"`
	IsUnavailable bool       `json:"isUnavailable"`
	Archived      bool       `json:"archived"`
	Price         *PriceView `json:"price"`
}

type LineItem struct {
	PriceID  string
	Quantity int64
}

type PaymentLinkRequest struct {
	Lines            []LineItem
	AllowedCountries []string
	RedirectURL      string
}

type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// String joins the non-empty components with ", ".
func (a *Address) String() string {
	if a == nil {
		return ""
	}
	parts := make([]string, 0, 6)
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Customer struct {
	ID      string
	Name    *string
	Email   *string
	Deleted bool
}

// CustomerRef is a customer id with the record attached when the provider
// expanded it.
type CustomerRef struct {
	ID     string
	Record *Customer
}

type OrderLine struct {
	Quantity         *int64
	ProductID        *string
	ProductName      *string
	PriceDescription *string
	Description      *string
}

type CheckoutSession struct {
	ID               string
	CustomerName     *string
	Customer         *CustomerRef
	Lines            []OrderLine
	CollectedAddress *Address
	ShippingAddress  *Address
	AmountTotal      *int64
	Currency         *string
}

type Invoice struct {
	ID       string
	Customer *CustomerRef
	Lines    []OrderLine
}
