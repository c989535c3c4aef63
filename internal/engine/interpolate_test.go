package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	ctx := map[string]any{
		"order_id":  "12345",
		"attempts":  float64(2),
		"empty":     "",
		"nil_value": nil,
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"simple substitution", "Order {order_id} found.", "Order 12345 found."},
		{"numeric value", "Attempt {attempts}.", "Attempt 2."},
		{"unknown token left as-is", "Hello {customer_name}.", "Hello {customer_name}."},
		{"empty string left as-is", "Value: {empty}", "Value: {empty}"},
		{"nil left as-is", "Value: {nil_value}", "Value: {nil_value}"},
		{"no tokens", "Plain text.", "Plain text."},
		{"empty template", "", ""},
		{"repeated token", "{order_id} and {order_id}", "12345 and 12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.template, ctx))
		})
	}
}
