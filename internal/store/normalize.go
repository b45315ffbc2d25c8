package store

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and query format of every date column.
const DateLayout = "2006-01-02"

// Normalize converts a driver value into the JSON-friendly form rows carry:
// dates become yyyy-MM-dd strings, byte slices become strings and numeric
// wrappers become float64.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.Format(DateLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(DateLayout)
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case float32:
		return float64(t)
	case decimal.Decimal:
		return t.InexactFloat64()
	case *big.Int:
		return t.Int64()
	}
	return v
}

// Text returns the text form of a stored value used for substring matching
// and canonical comparisons.
func Text(v any) string {
	switch t := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Number attempts to read v as a decimal.
func Number(v any) (decimal.Decimal, bool) {
	switch t := Normalize(v).(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// Compare orders two stored values: numerically when both read as numbers,
// otherwise by text. Nil sorts first.
func Compare(a, b any) int {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	as, aText := a.(string)
	bs, bText := b.(string)
	if aText && bText {
		return strings.Compare(as, bs)
	}
	if da, ok := Number(a); ok {
		if db, ok := Number(b); ok {
			return da.Cmp(db)
		}
	}
	return strings.Compare(Text(a), Text(b))
}
