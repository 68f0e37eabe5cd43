package frame

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalize converts v to one of the cell types nil, string, int64, float64
// or bool. json.Number becomes int64 when integral, float64 otherwise.
// NaN is treated as null. Nested values are encoded as JSON text.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case bool:
		return x
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint32:
		return int64(x)
	case uint16:
		return int64(x)
	case uint8:
		return int64(x)
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case float32:
		if math.IsNaN(float64(x)) {
			return nil
		}
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []byte:
		return string(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		return string(b)
	}
}

// String renders a cell as text. Null renders as the empty string; integral
// floats render without a fraction so that 5 and 5.0 print the same.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if i, ok := integral(x); ok {
			return strconv.FormatInt(i, 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return String(Normalize(x))
	}
}

func integral(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// appendKey appends a type-tagged encoding of v to b. Numbers share one tag
// so an int64 and an integral float64 encode identically.
func appendKey(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("\x00")
	case string:
		b.WriteString("s")
		b.WriteString(strconv.Itoa(len(x)))
		b.WriteByte(':')
		b.WriteString(x)
	case int64:
		b.WriteString("n")
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		b.WriteString("n")
		if i, ok := integral(x); ok {
			b.WriteString(strconv.FormatInt(i, 10))
		} else {
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		}
	case bool:
		if x {
			b.WriteString("T")
		} else {
			b.WriteString("F")
		}
	}
	b.WriteByte('|')
}

// equalCell compares two normalised cells with the same numeric folding as
// appendKey. Two nulls are equal.
func equalCell(a, b any) bool {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		}
		return false
	default:
		return a == b
	}
}
