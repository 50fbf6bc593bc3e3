package validate

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strconv"
)

// kindName returns the JSON type name of a decoded value.
func kindName(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number:
		if _, ok := new(big.Int).SetString(string(v), 10); ok {
			return "integer"
		}
		return "number"
	case float64, float32:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map:
		return "object"
	}
	return "unknown"
}

// asNumber converts a decoded numeric value to float64.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// asInteger returns the exact value of an integral number. Go integer
// kinds and integral json.Number text are converted without rounding;
// floating point values qualify when they have no fractional part.
func asInteger(value any) (*big.Int, bool) {
	switch v := value.(type) {
	case int:
		return big.NewInt(int64(v)), true
	case int8:
		return big.NewInt(int64(v)), true
	case int16:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case json.Number:
		if n, ok := new(big.Int).SetString(string(v), 10); ok {
			return n, true
		}
	}

	f, ok := asNumber(value)
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return nil, false
	}
	n, _ := big.NewFloat(f).Int(nil)
	return n, true
}

// integerParam renders an exact integer for message params: an int64 when
// it fits, its decimal text otherwise.
func integerParam(n *big.Int) any {
	if n.IsInt64() {
		return n.Int64()
	}
	return n.String()
}

// asSlice returns the elements of a decoded sequence.
func asSlice(value any) ([]any, bool) {
	if s, ok := value.([]any); ok {
		return s, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asMapping returns the entries of a decoded string-keyed mapping.
func asMapping(value any) (map[string]any, bool) {
	if m, ok := value.(map[string]any); ok {
		return m, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// canonical returns a comparison key for a decoded value. Mappings are
// encoded with sorted keys, integral numbers by their exact decimal text and
// other numbers in their shortest form, so equal values produce equal keys
// regardless of their Go representation.
func canonical(value any) string {
	if n, ok := asInteger(value); ok {
		return "n:" + n.String()
	}
	if f, ok := asNumber(value); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	if s, ok := asSlice(value); ok {
		key := "a:["
		for i, e := range s {
			if i > 0 {
				key += ","
			}
			key += canonical(e)
		}
		return key + "]"
	}
	if m, ok := asMapping(value); ok {
		norm := make(map[string]string, len(m))
		for k, v := range m {
			norm[k] = canonical(v)
		}
		data, _ := json.Marshal(norm)
		return "o:" + string(data)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "?:" + reflect.TypeOf(value).String()
	}
	return "v:" + string(data)
}
