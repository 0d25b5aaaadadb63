package notify

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/internal/models"
)

const (
	TypeCheckoutCompleted = "checkout.session.completed"
	TypePaymentSucceeded  = "payment_intent.succeeded"
)

// Event is one verified provider event. Exactly one of CheckoutCompleted,
// PaymentSucceeded or Ignored.
type Event interface {
	EventID() string
	EventType() string
	sealed()
}

type CheckoutCompleted struct {
	ID               string
	SessionID        string
	AmountTotal      *int64
	Currency         *string
	CollectedAddress *models.Address
}

type PaymentSucceeded struct {
	ID              string
	PaymentIntentID string
	Amount          int64
	Currency        string
	InvoiceID       *string
	SessionID       *string
}

type Ignored struct {
	ID   string
	Type string
}

func (e CheckoutCompleted) EventID() string   { return e.ID }
func (e CheckoutCompleted) EventType() string { return TypeCheckoutCompleted }
func (CheckoutCompleted) sealed()             {}

func (e PaymentSucceeded) EventID() string   { return e.ID }
func (e PaymentSucceeded) EventType() string { return TypePaymentSucceeded }
func (PaymentSucceeded) sealed()             {}

func (e Ignored) EventID() string   { return e.ID }
func (e Ignored) EventType() string { return e.Type }
func (Ignored) sealed()             {}

type wireAddress struct {
	Line1      *string `json:"line1"`
	Line2      *string `json:"line2"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	PostalCode *string `json:"postal_code"`
	Country    *string `json:"country"`
}

func (w *wireAddress) toModel() *models.Address {
	if w == nil {
		return nil
	}
	a := &models.Address{
		Line1:      deref(w.Line1),
		Line2:      deref(w.Line2),
		City:       deref(w.City),
		State:      deref(w.State),
		PostalCode: deref(w.PostalCode),
		Country:    deref(w.Country),
	}
	if a.String() == "" {
		return nil
	}
	return a
}

type wireSessionObject struct {
	ID                   string   `json:"id"`
	AmountTotal          *int64   `json:"amount_total"`
	Currency             *string  `json:"currency"`
	CollectedInformation *struct {
		ShippingDetails *struct {
			Address *wireAddress `json:"address"`
		} `json:"shipping_details"`
	} `json:"collected_information"`
}

type wirePaymentIntent struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Invoice  json.RawMessage   `json:"invoice"`
	Metadata map[string]string `json:"metadata"`
}

// ParseEvent verifies the signature header against the raw body before
// looking at the event type.
func ParseEvent(payload []byte, sigHeader string, secret string) (Event, error) {
	if sigHeader == "" {
		return nil, fmt.Errorf("missing signature header: %w", domain.ErrSignatureInvalid)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSignatureInvalid, err)
	}

	var raw json.RawMessage
	if ev.Data != nil {
		raw = ev.Data.Raw
	}

	switch string(ev.Type) {
	case TypeCheckoutCompleted:
		var obj wireSessionObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", domain.ErrValidation)
		}
		if obj.ID == "" {
			return nil, fmt.Errorf("checkout session without id: %w", domain.ErrValidation)
		}
		out := CheckoutCompleted{
			ID:          ev.ID,
			SessionID:   obj.ID,
			AmountTotal: obj.AmountTotal,
			Currency:    obj.Currency,
		}
		if ci := obj.CollectedInformation; ci != nil && ci.ShippingDetails != nil {
			out.CollectedAddress = ci.ShippingDetails.Address.toModel()
		}
		return out, nil

	case TypePaymentSucceeded:
		var obj wirePaymentIntent
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", domain.ErrValidation)
		}
		out := PaymentSucceeded{
			ID:              ev.ID,
			PaymentIntentID: obj.ID,
			Amount:          obj.Amount,
			Currency:        obj.Currency,
		}
		if id := expandableID(obj.Invoice); id != "" {
			out.InvoiceID = &id
		}
		if sid := obj.Metadata["session_id"]; sid != "" {
			out.SessionID = &sid
		}
		return out, nil

	default:
		return Ignored{ID: ev.ID, Type: string(ev.Type)}, nil
	}
}

// expandableID reads a field the provider sends either as a bare id or as an
// expanded object with an id.
func expandableID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
