package codec

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/semmidev/harmony/internal/domain"
)

// scalarText renders a record value for the text formats. Nested values
// are written as JSON.
func scalarText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case domain.Record:
		return scalarText(map[string]any(val))
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
