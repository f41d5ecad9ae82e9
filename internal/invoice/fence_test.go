package invoice

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "json fence", raw: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", raw: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "no fence", raw: "  {\"a\":1}\n", want: `{"a":1}`},
		{name: "prose around fence", raw: "Here you go:\n```json\n{\"a\":1}\n```\nAnything else?", want: `{"a":1}`},
		{name: "first fence wins", raw: "```json\n{\"a\":1}\n```\n```json\n{\"b\":2}\n```", want: `{"a":1}`},
		{name: "zero width characters", raw: "\ufeff```json\n{\"a\":\u200b1}\n```", want: `{"a":1}`},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFence(tt.raw))
		})
	}
}

func TestStripFence_RoundTrip(t *testing.T) {
	objects := []map[string]interface{}{
		{},
		{"invoice_date": "2025-03-01", "seller": "Acme", "total": "100.00", "tax": "19%", "payment_method": "Cash"},
		{"nested": map[string]interface{}{"k": []interface{}{"x", "y"}}, "n": 12.5},
		{"text": "inline `code` and a\nnewline"},
	}

	for _, o := range objects {
		encoded, err := json.Marshal(o)
		require.NoError(t, err)

		for _, raw := range []string{"```json\n" + string(encoded) + "\n```", string(encoded)} {
			var got map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(StripFence(raw)), &got), "raw: %s", raw)
			assert.Equal(t, o, got)
		}
	}
}
