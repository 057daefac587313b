package core

import (
	"fmt"
	"strconv"
)

// Bindings maps variable names to the values substituted during Render.
// A Bindings value is transient: it configures a single Render call and is
// never retained by the template.
type Bindings map[string]interface{}

// Stringify converts a bound value to its canonical string form. The rule
// is fixed so a value renders identically everywhere:
//
//	nil              -> ""
//	string           -> unchanged
//	[]byte           -> string(v)
//	fmt.Stringer     -> v.String()
//	bool             -> "true" / "false"
//	integers         -> base-10 without separators (3 -> "3")
//	float32, float64 -> shortest round-trip form (3.0 -> "3", 1.5 -> "1.5")
//	anything else    -> fmt.Sprint(v)
//
// Callers that need a different rendering should pre-format the value into
// a string before binding it.
func Stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
