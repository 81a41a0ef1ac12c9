package normalizer

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Container keys in resolution order. The indexer wraps every decoded
// ABI value in a single-key object; nesting happens for tuple types.
var containerKeys = []string{"bigInteger", "integer", "string", "address", "hex", "bool"}

// resolveValue peels nested value containers until a primitive is left.
func resolveValue(raw any) any {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	for _, key := range containerKeys {
		if inner, present := m[key]; present && inner != nil {
			return resolveValue(inner)
		}
	}
	return raw
}

// numericValue coerces a raw argument into an exact decimal. Hex strings
// are parsed as big integers: on-chain amounts routinely exceed int64.
func numericValue(raw any) (decimal.Decimal, bool) {
	switch v := resolveValue(raw).(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		cleaned := strings.TrimSpace(v)
		if cleaned == "" {
			return decimal.Decimal{}, false
		}
		if strings.HasPrefix(cleaned, "0x") || strings.HasPrefix(cleaned, "0X") {
			bi, ok := new(big.Int).SetString(cleaned[2:], 16)
			if !ok {
				return decimal.Decimal{}, false
			}
			return decimal.NewFromBigInt(bi, 0), true
		}
		d, err := decimal.NewFromString(cleaned)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// stringValue coerces a raw argument into its string form (addresses,
// asset ids, hashes).
func stringValue(raw any) (string, bool) {
	switch v := resolveValue(raw).(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
