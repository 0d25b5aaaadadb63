package transport

type AuthRequest struct {
	Action   string `json:"action"`
	Password string `json:"password"`
}

type AuthStatusResponse struct {
	Authenticated bool `json:"authenticated"`
}

type PatchProductRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	IsUnavailable *bool   `json:"isUnavailable"`
	Price         *int64  `json:"price"`
}

type CheckoutItem struct {
	PriceID  string `json:"priceId"`
	Quantity int64  `json:"quantity"`
}

type CheckoutRequest struct {
	Items          []CheckoutItem `json:"items"`
	DeliveryMethod string         `json:"deliveryMethod"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type UnavailableResponse struct {
	Error            string   `json:"error"`
	UnavailableItems []string `json:"unavailableItems"`
}

type DeliveryPriceResponse struct {
	PriceID string `json:"priceId"`
}
