package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_Checkout(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "ok", body: `{"items":[{"priceId":"price_1","quantity":2}],"deliveryMethod":"local"}`},
		{name: "no delivery", body: `{"items":[{"priceId":"price_1","quantity":1}]}`},
		{name: "empty items", body: `{"items":[]}`, wantErr: true},
		{name: "zero quantity", body: `{"items":[{"priceId":"price_1","quantity":0}]}`, wantErr: true},
		{name: "fractional quantity", body: `{"items":[{"priceId":"price_1","quantity":1.5}]}`, wantErr: true},
		{name: "unknown delivery", body: `{"items":[{"priceId":"price_1","quantity":1}],"deliveryMethod":"drone"}`, wantErr: true},
		{name: "not json", body: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(CheckoutSchema, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_PatchAndAuth(t *testing.T) {
	assert.NoError(t, Validate(PatchProductSchema, []byte(`{"isUnavailable":true,"price":500}`)))
	assert.Error(t, Validate(PatchProductSchema, []byte(`{"price":"5.00"}`)))

	assert.NoError(t, Validate(AuthSchema, []byte(`{"action":"login","password":"x"}`)))
	assert.Error(t, Validate(AuthSchema, []byte(`{"action":"sudo"}`)))
}
