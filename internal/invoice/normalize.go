package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// alternateTotalKey is the key some model responses use instead of "total".
const alternateTotalKey = "total_amount"

// ParseFields decodes a model response into Fields. The response is passed
// through StripFence first; anything that is not a JSON object is an error.
// organization is the processing organization's own name, which is never a seller.
func ParseFields(raw, organization string) (Fields, error) {
	clean := StripFence(raw)
	if clean == "" {
		return Fields{}, fmt.Errorf("ParseFields: empty model response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return Fields{}, fmt.Errorf("ParseFields: unmarshal JSON: %w", err)
	}
	if obj == nil {
		return Fields{}, fmt.Errorf("ParseFields: model response is not a JSON object")
	}

	return NormalizeFields(obj, organization), nil
}

// NormalizeFields maps a loosely-shaped model payload onto Fields.
// "total_amount" is accepted in place of a missing or empty "total" and never
// survives normalization. Missing, null or non-scalar values become "".
func NormalizeFields(obj map[string]interface{}, organization string) Fields {
	if total := scalarString(obj["total"]); total == "" {
		if alt, ok := obj[alternateTotalKey]; ok {
			obj["total"] = alt
		}
	}
	delete(obj, alternateTotalKey)

	f := Fields{
		InvoiceDate:   scalarString(obj["invoice_date"]),
		Seller:        scalarString(obj["seller"]),
		Total:         scalarString(obj["total"]),
		Tax:           scalarString(obj["tax"]),
		PaymentMethod: scalarString(obj["payment_method"]),
	}

	if organization != "" && sameName(f.Seller, organization) {
		f.Seller = ""
	}

	return f
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		if d, err := decimal.NewFromString(val.String()); err == nil {
			return d.String()
		}
		return val.String()
	case float64:
		return decimal.NewFromFloat(val).String()
	case int:
		return decimal.NewFromInt(int64(val)).String()
	default:
		return ""
	}
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}
