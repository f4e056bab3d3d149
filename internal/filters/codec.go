package filters

import (
	"strconv"
	"time"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
)

// EditableLayout is the minute-precision local time shown by datetime inputs.
const EditableLayout = "2006-01-02T15:04"

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	EditableLayout,
	"2006-01-02",
}

// Codec converts filter values between their editable and wire forms.
// Only datetime filters differ: local time in the editor, unix seconds on
// the wire.
type Codec struct {
	// Location is the viewer time zone; nil means time.Local.
	Location *time.Location
}

// DefaultCodec uses the process local time zone.
var DefaultCodec = Codec{}

func (c Codec) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Normalize turns a raw URL value into its editable form.
func (c Codec) Normalize(spec dashboard.FilterSpec, raw string) string {
	if spec.Type != dashboard.FilterDateTime || !allDigits(raw) {
		return raw
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	return time.Unix(seconds, 0).In(c.location()).Format(EditableLayout)
}

// Serialize turns an editable value into its wire form. An empty result
// means the value could not be encoded and must be dropped.
func (c Codec) Serialize(spec dashboard.FilterSpec, value string) string {
	if spec.Type != dashboard.FilterDateTime || allDigits(value) {
		return value
	}
	t, ok := c.parse(value)
	if !ok {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}

func (c Codec) parse(value string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, c.location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// InputKind returns the editor input kind for a filter type.
func InputKind(t dashboard.FilterType) string {
	switch t {
	case dashboard.FilterNumber:
		return "number"
	case dashboard.FilterDate:
		return "date"
	case dashboard.FilterDateTime:
		return "datetime-local"
	default:
		return "text"
	}
}
