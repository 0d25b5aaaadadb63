package transport

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const schemaAuth = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": { "type": "string", "enum": ["login", "logout"] },
    "password": { "type": "string" }
  }
}`

const schemaPatchProduct = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": { "type": "string" },
    "description": { "type": "string" },
    "isUnavailable": { "type": "boolean" },
    "price": { "type": "integer" }
  }
}`

const schemaCheckout = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["priceId", "quantity"],
        "properties": {
          "priceId": { "type": "string", "minLength": 1 },
          "quantity": { "type": "integer", "minimum": 1 }
        }
      }
    },
    "deliveryMethod": { "type": "string", "enum": ["", "local", "shipping"] }
  }
}`

var (
	AuthSchema         = gojsonschema.NewStringLoader(schemaAuth)
	PatchProductSchema = gojsonschema.NewStringLoader(schemaPatchProduct)
	CheckoutSchema     = gojsonschema.NewStringLoader(schemaCheckout)
)

// Validate checks a raw request body against one of the schemas above.
func Validate(schema gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("request does not conform to schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}
