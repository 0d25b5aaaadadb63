package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/internal/models"
)

const webhookSecret = "whsec_test_secret"

func signPayload(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func ptr[T any](v T) *T { return &v }

type fakeProvider struct {
	mu         sync.Mutex
	sessions   map[string]*models.CheckoutSession
	invoices   map[string]*models.Invoice
	customers  map[string]*models.Customer
	products   map[string]*models.ProviderProduct
	sessionErr error

	productLookups int
}

func (f *fakeProvider) GetCheckoutSession(ctx context.Context, id string) (*models.CheckoutSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeProvider) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

func (f *fakeProvider) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, domain.ErrUpstream
	}
	return c, nil
}

func (f *fakeProvider) GetProduct(ctx context.Context, id string) (*models.ProviderProduct, error) {
	f.mu.Lock()
	f.productLookups++
	f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type recordingSender struct {
	to, body string
	calls    int
	err      error
}

func (r *recordingSender) Send(ctx context.Context, to, body string) error {
	r.calls++
	r.to, r.body = to, body
	return r.err
}

func newNormalizer(fp *fakeProvider) *Normalizer {
	return &Normalizer{Provider: fp, LocalDeliveryProductID: "prod_local", ShippingProductID: "prod_ship"}
}

func TestParseEvent_Signature(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	now := time.Now()

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "garbage header", header: "not-a-signature"},
		{name: "foreign secret", header: signPayload(payload, "whsec_other", now)},
		{name: "stale timestamp", header: signPayload(payload, webhookSecret, now.Add(-time.Hour))},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseEvent(payload, tt.header, webhookSecret)
			assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
		})
	}

	t.Run("altered body", func(t *testing.T) {
		t.Parallel()
		header := signPayload(payload, webhookSecret, now)
		altered := append([]byte{}, payload...)
		altered[len(altered)-3] = ' '
		_, err := ParseEvent(altered, header, webhookSecret)
		assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
	})

	t.Run("unhandled kind is ignored", func(t *testing.T) {
		t.Parallel()
		ev, err := ParseEvent(payload, signPayload(payload, webhookSecret, now), webhookSecret)
		require.NoError(t, err)
		ign, ok := ev.(Ignored)
		require.True(t, ok)
		assert.Equal(t, "customer.created", ign.Type)
	})
}

func TestParseEvent_PaymentIntentInvoiceShapes(t *testing.T) {
	t.Parallel()

	for name, invoice := range map[string]string{
		"bare id":  `"in_1"`,
		"expanded": `{"id":"in_1","object":"invoice"}`,
	} {
		invoice := invoice
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			payload := []byte(`{"id":"evt_2","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","amount":1250,"currency":"cad","invoice":` + invoice + `,"metadata":{}}}}`)
			ev, err := ParseEvent(payload, signPayload(payload, webhookSecret, time.Now()), webhookSecret)
			require.NoError(t, err)

			ps, ok := ev.(PaymentSucceeded)
			require.True(t, ok)
			require.NotNil(t, ps.InvoiceID)
			assert.Equal(t, "in_1", *ps.InvoiceID)
			assert.Nil(t, ps.SessionID)
			assert.Equal(t, int64(1250), ps.Amount)
		})
	}
}

func TestWebhook_CheckoutCompletedWithLocalDelivery(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{
		sessions: map[string]*models.CheckoutSession{
			"cs_1": {
				ID:           "cs_1",
				CustomerName: ptr("Dana"),
				Lines: []models.OrderLine{
					{Quantity: ptr(int64(2)), ProductID: ptr("prod_biscuit"), ProductName: ptr("Peanut Biscuits")},
					{Quantity: ptr(int64(1)), ProductID: ptr("prod_jerky")},
					{Quantity: ptr(int64(1)), ProductID: ptr("prod_local"), ProductName: ptr("Local delivery")},
				},
				ShippingAddress: &models.Address{Line1: "1 Old Rd", City: "Halifax"},
			},
		},
		products: map[string]*models.ProviderProduct{
			"prod_jerky": {ID: "prod_jerky", Name: "Beef Jerky"},
		},
	}
	sender := &recordingSender{}
	svc := &WebhookService{
		Secret:     webhookSecret,
		Normalizer: newNormalizer(fp),
		Dispatcher: &Dispatcher{Sender: sender, Recipient: "+15550001111"},
	}

	payload := []byte(`{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{` +
		`"id":"cs_1","amount_total":3450,"currency":"cad",` +
		`"collected_information":{"shipping_details":{"address":{"line1":"12 Bark St","line2":null,"city":"Halifax","state":"NS","postal_code":"B3H 1A1","country":"CA"}}}}}}`)

	err := svc.Handle(context.Background(), payload, signPayload(payload, webhookSecret, time.Now()))
	require.NoError(t, err)

	require.Equal(t, 1, sender.calls)
	assert.Equal(t, "+15550001111", sender.to)
	assert.Equal(t,
		"New Order from Dana!\n\n"+
			"Peanut Biscuits x2\nBeef Jerky x1\n\n"+
			"TYPE: Local Delivery\n"+
			"ADDRESS: 12 Bark St, Halifax, NS, B3H 1A1, CA\n\n"+
			"Total: CAD 34.50",
		sender.body)
}

func TestWebhook_BadSignatureSendsNothing(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	svc := &WebhookService{
		Secret:     webhookSecret,
		Normalizer: newNormalizer(&fakeProvider{}),
		Dispatcher: &Dispatcher{Sender: sender, Recipient: "+15550001111"},
	}
	payload := []byte(`{"id":"evt_4","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)

	err := svc.Handle(context.Background(), payload, signPayload(payload, "whsec_wrong", time.Now()))
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
	assert.Zero(t, sender.calls)
}

func TestWebhook_SendFailureSurfaces(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{sessions: map[string]*models.CheckoutSession{"cs_1": {ID: "cs_1"}}}
	sender := &recordingSender{err: errors.New("twilio down")}
	svc := &WebhookService{
		Secret:     webhookSecret,
		Normalizer: newNormalizer(fp),
		Dispatcher: &Dispatcher{Sender: sender, Recipient: "+15550001111"},
	}
	payload := []byte(`{"id":"evt_5","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)

	err := svc.Handle(context.Background(), payload, signPayload(payload, webhookSecret, time.Now()))
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestWebhook_SessionLookupFailureSurfaces(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{sessionErr: domain.ErrUpstream}
	sender := &recordingSender{}
	svc := &WebhookService{
		Secret:     webhookSecret,
		Normalizer: newNormalizer(fp),
		Dispatcher: &Dispatcher{Sender: sender, Recipient: "+15550001111"},
	}
	payload := []byte(`{"id":"evt_6","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)

	err := svc.Handle(context.Background(), payload, signPayload(payload, webhookSecret, time.Now()))
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Zero(t, sender.calls)
}

func TestNormalizer_PaymentSucceeded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("invoice lines and customer email", func(t *testing.T) {
		fp := &fakeProvider{
			invoices: map[string]*models.Invoice{
				"in_1": {
					ID:       "in_1",
					Customer: &models.CustomerRef{ID: "cus_1"},
					Lines: []models.OrderLine{
						{ProductID: ptr("prod_gone"), PriceDescription: ptr("Salmon Bites")},
						{ProductID: ptr("prod_missing")},
						{ProductID: ptr("prod_ship")},
					},
				},
			},
			customers: map[string]*models.Customer{"cus_1": {ID: "cus_1", Email: ptr("dana@example.com")}},
		}
		n, err := newNormalizer(fp).Build(ctx, PaymentSucceeded{ID: "evt_7", Amount: 999, Currency: "usd", InvoiceID: ptr("in_1")})
		require.NoError(t, err)

		assert.Equal(t, "dana@example.com", n.CustomerName)
		assert.Equal(t, DeliveryShipping, n.Delivery)
		assert.Equal(t, []ItemLine{{Name: "Salmon Bites", Quantity: 1}, {Name: "Unknown Product", Quantity: 1}}, n.Items)
		assert.Equal(t, "New Order from dana@example.com!\n\nSalmon Bites x1\nUnknown Product x1\n\nTYPE: Shipping\nTotal: USD 9.99", n.Message())
	})

	t.Run("session lookup failure still reports total", func(t *testing.T) {
		fp := &fakeProvider{sessionErr: domain.ErrUpstream}
		n, err := newNormalizer(fp).Build(ctx, PaymentSucceeded{ID: "evt_8", Amount: 500, Currency: "cad", SessionID: ptr("cs_x")})
		require.NoError(t, err)
		assert.Empty(t, n.Items)
		assert.Equal(t, "New Order from Customer!\n\nTotal: CAD 5.00", n.Message())
	})

	t.Run("session fallback uses legacy shipping address", func(t *testing.T) {
		fp := &fakeProvider{sessions: map[string]*models.CheckoutSession{
			"cs_2": {
				ID:              "cs_2",
				Customer:        &models.CustomerRef{ID: "cus_9", Record: &models.Customer{ID: "cus_9", Deleted: true, Name: ptr("Gone")}},
				ShippingAddress: &models.Address{Line1: "5 Paw Ln", Country: "CA"},
				Lines:           []models.OrderLine{{Description: ptr("Gift card"), Quantity: ptr(int64(3))}},
			},
		}}
		n, err := newNormalizer(fp).Build(ctx, PaymentSucceeded{ID: "evt_9", Amount: 3000, Currency: "cad", SessionID: ptr("cs_2")})
		require.NoError(t, err)
		assert.Equal(t, "Customer", n.CustomerName)
		assert.Equal(t, "5 Paw Ln, CA", n.Address)
		assert.Equal(t, []ItemLine{{Name: "Gift card", Quantity: 3}}, n.Items)
	})
}

func TestNormalizer_IgnoredBuildsNothing(t *testing.T) {
	t.Parallel()

	n, err := newNormalizer(&fakeProvider{}).Build(context.Background(), Ignored{ID: "evt_x", Type: "charge.refunded"})
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestDispatcher_SkipsWithoutRecipient(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	d := &Dispatcher{Sender: sender}
	require.NoError(t, d.Dispatch(context.Background(), &Notification{CustomerName: "Dana", Currency: "usd"}))
	assert.Zero(t, sender.calls)
}

type recordingPublisher struct {
	topics []string
}

func (r *recordingPublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func TestDispatcher_RecipientWithoutSenderFails(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	d := &Dispatcher{Recipient: "+15550001111", Publisher: pub}
	err := d.Dispatch(context.Background(), &Notification{SourceEventID: "evt_1", CustomerName: "Dana", Currency: "usd"})
	require.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.Empty(t, pub.topics)
}
