package dashboard

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var templateField = regexp.MustCompile(`{{\s*([^}]+?)\s*}}`)

// Cell is the display form of one table cell.
type Cell struct {
	Text     string
	URL      string
	External bool
}

// RenderCell formats the value of col in row, resolving link templates.
func RenderCell(col ColumnSpec, row Row) Cell {
	raw := row[col.ID]
	render := col.Render
	if render == nil || render.Type != "link" {
		return Cell{Text: FormatValue(raw)}
	}

	text := primitive(raw)
	if render.Text != "" {
		text = ApplyTemplate(render.Text, row)
	}
	url := ""
	if render.URL != "" {
		url = ApplyTemplate(render.URL, row)
	}
	if url == "" {
		return Cell{Text: text}
	}
	return Cell{Text: text, URL: url, External: render.External}
}

// ApplyTemplate replaces {{ field }} placeholders with row values.
func ApplyTemplate(tpl string, row Row) string {
	return templateField.ReplaceAllStringFunc(tpl, func(match string) string {
		key := strings.TrimSpace(templateField.FindStringSubmatch(match)[1])
		return primitive(row[key])
	})
}

// FormatValue renders a cell value: lists one item per line, objects as JSON.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, primitive(item))
		}
		return strings.Join(items, "\n")
	case map[string]any:
		return marshal(v)
	default:
		return primitive(v)
	}
}

func primitive(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any, []any:
		return marshal(v)
	default:
		return fmt.Sprint(v)
	}
}

func marshal(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
