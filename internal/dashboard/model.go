// Package dashboard holds the declarative UI description published by the
// dashboard server: menu, pages, widgets, table columns and filters.
package dashboard

import "gopkg.in/yaml.v3"

// FilterType selects the input and wire encoding of a filter.
type FilterType string

// Supported filter types.
const (
	FilterText        FilterType = "text"
	FilterNumber      FilterType = "number"
	FilterDate        FilterType = "date"
	FilterDateTime    FilterType = "datetime"
	FilterSelectOne   FilterType = "select_one"
	FilterSelectMulti FilterType = "select_multi"
)

// WidgetTable is the only widget type with rows and filters.
const WidgetTable = "table"

// AppConfig is the document served by the config endpoint.
type AppConfig struct {
	Title      string     `yaml:"title" json:"title"`
	PathPrefix string     `yaml:"path_prefix" json:"path_prefix,omitempty"`
	Menu       []MenuItem `yaml:"menu" json:"menu" validate:"dive"`
	Pages      []Page     `yaml:"pages" json:"pages" validate:"dive"`
}

// MenuItem is one entry of the navigation tree.
type MenuItem struct {
	Title    string     `yaml:"title" json:"title" validate:"required"`
	Page     string     `yaml:"page" json:"page,omitempty"`
	Href     string     `yaml:"href" json:"href,omitempty"`
	Children []MenuItem `yaml:"children" json:"children,omitempty" validate:"dive"`
}

// Page groups widgets under a slug.
type Page struct {
	Slug    string   `yaml:"slug" json:"slug" validate:"required"`
	Title   string   `yaml:"title" json:"title"`
	Widgets []Widget `yaml:"widgets" json:"widgets" validate:"dive"`
}

// Widget is a data-backed block of a page.
type Widget struct {
	ID    string     `yaml:"id" json:"id" validate:"required"`
	Title string     `yaml:"title" json:"title"`
	Type  string     `yaml:"type" json:"type" validate:"required"`
	Table *TableSpec `yaml:"table" json:"table,omitempty"`
}

// Filters returns the table filters of the widget, if any.
func (w Widget) Filters() []FilterSpec {
	if w.Table == nil {
		return nil
	}
	return w.Table.Filters
}

// Columns returns the table columns of the widget, if any.
func (w Widget) Columns() []ColumnSpec {
	if w.Table == nil {
		return nil
	}
	return w.Table.Columns
}

// TableSpec describes a table widget.
type TableSpec struct {
	Columns []ColumnSpec `yaml:"columns" json:"columns" validate:"dive"`
	Filters []FilterSpec `yaml:"filters" json:"filters,omitempty" validate:"dive"`
}

// ColumnSpec describes one table column.
type ColumnSpec struct {
	ID     string        `yaml:"id" json:"id" validate:"required"`
	Title  string        `yaml:"title" json:"title,omitempty"`
	Render *ColumnRender `yaml:"render" json:"render,omitempty"`
}

// UnmarshalYAML accepts a bare scalar as shorthand for {id: x, title: x}.
func (c *ColumnSpec) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		c.ID = n.Value
		c.Title = n.Value
		return nil
	}

	type raw ColumnSpec
	var parsed raw
	if err := n.Decode(&parsed); err != nil {
		return err
	}
	if parsed.Title == "" {
		parsed.Title = parsed.ID
	}
	*c = ColumnSpec(parsed)
	return nil
}

// ColumnRender turns a cell into a link when Type is "link".
type ColumnRender struct {
	Type     string `yaml:"type" json:"type"`
	Text     string `yaml:"text" json:"text,omitempty"`
	URL      string `yaml:"url" json:"url,omitempty"`
	External bool   `yaml:"external" json:"external,omitempty"`
}

// FilterSpec declares one filterable dimension of a table.
type FilterSpec struct {
	ID        string        `yaml:"id" json:"id" validate:"required"`
	Title     string        `yaml:"title" json:"title"`
	Type      FilterType    `yaml:"type" json:"type" validate:"required,oneof=text number date datetime select_one select_multi"`
	Target    string        `yaml:"target" json:"target,omitempty"`
	Operators []string      `yaml:"operators" json:"operators,omitempty"`
	Values    []ValueOption `yaml:"values" json:"values,omitempty"`
}

// ValueOption is an enumerated choice of a select filter.
type ValueOption struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Row is one record returned by the widget data endpoint.
type Row = map[string]any

// DataResponse is the payload of the widget data endpoint.
type DataResponse struct {
	Data       []Row   `json:"data"`
	Total      int     `json:"total"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    *bool   `json:"has_more,omitempty"`
}

// Cursor reports the opaque next-page token. An empty token counts as absent.
func (r DataResponse) Cursor() (string, bool) {
	if r.NextCursor == nil || *r.NextCursor == "" {
		return "", false
	}
	return *r.NextCursor, true
}

// More reports whether the server announced further rows.
func (r DataResponse) More() bool {
	return r.HasMore != nil && *r.HasMore
}

// FindPage looks a page up by slug.
func (c AppConfig) FindPage(slug string) (Page, bool) {
	for _, page := range c.Pages {
		if page.Slug == slug {
			return page, true
		}
	}
	return Page{}, false
}

// FindWidget looks a widget up by id across all pages.
func (c AppConfig) FindWidget(id string) (Widget, bool) {
	for _, page := range c.Pages {
		for _, widget := range page.Widgets {
			if widget.ID == id {
				return widget, true
			}
		}
	}
	return Widget{}, false
}
