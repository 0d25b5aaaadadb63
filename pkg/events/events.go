package events

import (
	"time"

	"github.com/google/uuid"
)

type ProductUpdated struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	ProductID     string    `json:"productID"`
	Name          string    `json:"name"`
	IsUnavailable bool      `json:"isUnavailable"`
	PriceID       string    `json:"priceID,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func NewProductUpdated(productID, name string, unavailable bool, priceID string) ProductUpdated {
	return ProductUpdated{
		ID:            uuid.NewString(),
		Type:          "product_updated",
		ProductID:     productID,
		Name:          name,
		IsUnavailable: unavailable,
		PriceID:       priceID,
		OccurredAt:    time.Now().UTC(),
	}
}

type OrderNotified struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	SourceEventID string    `json:"sourceEventID"`
	SourceType    string    `json:"sourceType"`
	LineCount     int       `json:"lineCount"`
	DeliveryType  string    `json:"deliveryType,omitempty"`
	Currency      string    `json:"currency"`
	AmountMinor   int64     `json:"amountMinor"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func NewOrderNotified(sourceEventID, sourceType string, lines int, delivery, currency string, amount int64) OrderNotified {
	return OrderNotified{
		ID:            uuid.NewString(),
		Type:          "order_notified",
		SourceEventID: sourceEventID,
		SourceType:    sourceType,
		LineCount:     lines,
		DeliveryType:  delivery,
		Currency:      currency,
		AmountMinor:   amount,
		OccurredAt:    time.Now().UTC(),
	}
}
