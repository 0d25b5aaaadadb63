package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/treat_shop/internal/models"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

const (
	DeliveryLocal    = "Local Delivery"
	DeliveryShipping = "Shipping"

	fallbackCustomer = "Customer"
	unknownProduct   = "Unknown Product"
	defaultCurrency  = "usd"
)

type Provider interface {
	GetCheckoutSession(ctx context.Context, id string) (*models.CheckoutSession, error)
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetProduct(ctx context.Context, id string) (*models.ProviderProduct, error)
}

type ItemLine struct {
	Name     string
	Quantity int64
}

// Notification is the normalized order, ready to be rendered as one SMS.
type Notification struct {
	SourceEventID string
	SourceType    string
	CustomerName  string
	Items         []ItemLine
	Delivery      string
	Address       string
	Amount        int64
	Currency      string
}

func (n *Notification) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "New Order from %s!\n\n", n.CustomerName)

	if len(n.Items) > 0 {
		lines := make([]string, 0, len(n.Items))
		for _, it := range n.Items {
			lines = append(lines, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
		}
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n\n")
	}
	if n.Delivery != "" {
		fmt.Fprintf(&b, "TYPE: %s\n", n.Delivery)
	}
	if n.Address != "" {
		fmt.Fprintf(&b, "ADDRESS: %s\n\n", n.Address)
	}

	total := decimal.NewFromInt(n.Amount).Shift(-2).StringFixed(2)
	fmt.Fprintf(&b, "Total: %s %s", strings.ToUpper(n.Currency), total)
	return b.String()
}

type Normalizer struct {
	Provider               Provider
	LocalDeliveryProductID string
	ShippingProductID      string
}

// Build returns nil for events that produce no message.
func (n *Normalizer) Build(ctx context.Context, ev Event) (*Notification, error) {
	switch e := ev.(type) {
	case CheckoutCompleted:
		return n.fromCheckout(ctx, e)
	case PaymentSucceeded:
		return n.fromPayment(ctx, e)
	default:
		return nil, nil
	}
}

func (n *Normalizer) fromCheckout(ctx context.Context, e CheckoutCompleted) (*Notification, error) {
	session, err := n.Provider.GetCheckoutSession(ctx, e.SessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve checkout session %s: %w", e.SessionID, err)
	}

	out := &Notification{
		SourceEventID: e.ID,
		SourceType:    TypeCheckoutCompleted,
		CustomerName:  n.sessionCustomerName(ctx, session),
		Currency:      defaultCurrency,
	}
	if e.AmountTotal != nil {
		out.Amount = *e.AmountTotal
	}
	if e.Currency != nil && *e.Currency != "" {
		out.Currency = *e.Currency
	}

	out.Address = firstAddress(e.CollectedAddress, session.CollectedAddress, session.ShippingAddress)
	out.Items, out.Delivery = n.itemize(ctx, session.Lines)
	return out, nil
}

func (n *Normalizer) fromPayment(ctx context.Context, e PaymentSucceeded) (*Notification, error) {
	l := logging.FromContext(ctx).With("svc", "notify.build", "event_id", e.ID)

	out := &Notification{
		SourceEventID: e.ID,
		SourceType:    TypePaymentSucceeded,
		CustomerName:  fallbackCustomer,
		Amount:        e.Amount,
		Currency:      e.Currency,
	}
	if out.Currency == "" {
		out.Currency = defaultCurrency
	}

	var lines []models.OrderLine
	switch {
	case e.InvoiceID != nil:
		inv, err := n.Provider.GetInvoice(ctx, *e.InvoiceID)
		if err != nil {
			return nil, fmt.Errorf("resolve invoice %s: %w", *e.InvoiceID, err)
		}
		lines = inv.Lines
		out.CustomerName = n.customerName(ctx, inv.Customer)

	case e.SessionID != nil:
		session, err := n.Provider.GetCheckoutSession(ctx, *e.SessionID)
		if err != nil {
			l.Warn("session_lookup_failed", "session_id", *e.SessionID, "error", err)
			break
		}
		lines = session.Lines
		out.CustomerName = n.sessionCustomerName(ctx, session)
		out.Address = firstAddress(session.CollectedAddress, session.ShippingAddress)
	}

	out.Items, out.Delivery = n.itemize(ctx, lines)
	return out, nil
}

func (n *Normalizer) sessionCustomerName(ctx context.Context, s *models.CheckoutSession) string {
	if s.CustomerName != nil && *s.CustomerName != "" {
		return *s.CustomerName
	}
	return n.customerName(ctx, s.Customer)
}

// customerName resolves name then email. Deleted records and failed lookups
// both fall back to "Customer".
func (n *Normalizer) customerName(ctx context.Context, ref *models.CustomerRef) string {
	if ref == nil {
		return fallbackCustomer
	}
	c := ref.Record
	if c == nil {
		if ref.ID == "" {
			return fallbackCustomer
		}
		var err error
		c, err = n.Provider.GetCustomer(ctx, ref.ID)
		if err != nil {
			logging.FromContext(ctx).Warn("customer_lookup_failed", "customer_id", ref.ID, "error", err)
			return fallbackCustomer
		}
	}
	if c.Deleted {
		return fallbackCustomer
	}
	if c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	if c.Email != nil && *c.Email != "" {
		return *c.Email
	}
	return fallbackCustomer
}

func firstAddress(candidates ...*models.Address) string {
	for _, a := range candidates {
		if s := a.String(); s != "" {
			return s
		}
	}
	return ""
}

// itemize drops delivery lines, classifying the order by the first one seen,
// and resolves the remaining product names concurrently.
func (n *Normalizer) itemize(ctx context.Context, lines []models.OrderLine) ([]ItemLine, string) {
	var (
		delivery string
		kept     []models.OrderLine
	)
	for _, line := range lines {
		pid := deref(line.ProductID)
		switch {
		case pid != "" && pid == n.LocalDeliveryProductID:
			if delivery == "" {
				delivery = DeliveryLocal
			}
			continue
		case pid != "" && pid == n.ShippingProductID:
			if delivery == "" {
				delivery = DeliveryShipping
			}
			continue
		}
		kept = append(kept, line)
	}

	items := make([]ItemLine, len(kept))
	var g errgroup.Group
	for i, line := range kept {
		i, line := i, line
		g.Go(func() error {
			qty := int64(1)
			if line.Quantity != nil && *line.Quantity > 0 {
				qty = *line.Quantity
			}
			items[i] = ItemLine{Name: n.productName(ctx, line), Quantity: qty}
			return nil
		})
	}
	_ = g.Wait()
	return items, delivery
}

func (n *Normalizer) productName(ctx context.Context, line models.OrderLine) string {
	if line.ProductName != nil && *line.ProductName != "" {
		return *line.ProductName
	}
	pid := deref(line.ProductID)
	if pid == "" {
		if d := deref(line.Description); d != "" {
			return d
		}
		return unknownProduct
	}

	p, err := n.Provider.GetProduct(ctx, pid)
	if err != nil {
		logging.FromContext(ctx).Warn("product_lookup_failed", "product_id", pid, "error", err)
		if d := deref(line.PriceDescription); d != "" {
			return d
		}
		return unknownProduct
	}
	if p.Name == "" {
		return unknownProduct
	}
	return p.Name
}
