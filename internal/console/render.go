// Package console renders dashboard menus, filter panels and widget tables
// as terminal text.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/filters"
	"github.com/odyssey-erp/dashclient/internal/widget"
)

// Renderer writes dashboard views to w.
type Renderer struct {
	w       io.Writer
	heading *color.Color
	failure *color.Color
	muted   *color.Color
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColor forces colored output on or off. By default color follows
// whether stdout is a terminal.
func WithColor(enabled bool) Option {
	return func(r *Renderer) {
		for _, c := range []*color.Color{r.heading, r.failure, r.muted} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// New returns a renderer writing to w.
func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		w:       w,
		heading: color.New(color.Bold),
		failure: color.New(color.FgRed),
		muted:   color.New(color.Faint),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Menu prints the navigation tree under the app title.
func (r *Renderer) Menu(title string, nodes []dashboard.MenuNode) {
	if title != "" {
		r.heading.Fprintln(r.w, title)
	}
	dashboard.WalkMenu(nodes, func(depth int, node dashboard.MenuNode) {
		indent := strings.Repeat("  ", depth)
		switch node.Kind {
		case dashboard.NodeLink:
			fmt.Fprintf(r.w, "%s- %s (%s)\n", indent, node.Title, node.Path())
		case dashboard.NodeExternal:
			fmt.Fprintf(r.w, "%s- %s -> %s\n", indent, node.Title, node.Href)
		default:
			fmt.Fprintf(r.w, "%s- %s\n", indent, node.Title)
		}
	})
}

// Filters prints the filter panel of specs with the values of state.
func (r *Renderer) Filters(specs []dashboard.FilterSpec, state filters.State) {
	if len(specs) == 0 {
		return
	}
	r.heading.Fprintln(r.w, "Filters")
	for _, spec := range specs {
		entry := state[spec.ID]
		current := entry.Operator
		if !current.IsSet() {
			current = filters.DefaultOperator(spec)
		}

		ops := filters.ResolveOperators(spec)
		labels := make([]string, 0, len(ops))
		for _, op := range ops {
			label := op.Label()
			if op == current {
				label = "*" + label
			}
			labels = append(labels, label)
		}

		title := spec.Title
		if title == "" {
			title = spec.ID
		}
		values := "-"
		if len(entry.Values) > 0 {
			values = strings.Join(entry.Values, ", ")
		}
		fmt.Fprintf(r.w, "  %s [%s] (%s): %s\n", title, strings.Join(labels, "|"), filters.InputKind(spec.Type), values)

		if len(spec.Values) > 0 {
			options := make([]string, 0, len(spec.Values))
			for _, opt := range spec.Values {
				if opt.Label != "" && opt.Label != opt.Value {
					options = append(options, fmt.Sprintf("%s=%s", opt.Value, opt.Label))
					continue
				}
				options = append(options, opt.Value)
			}
			r.muted.Fprintf(r.w, "    options: %s\n", strings.Join(options, ", "))
		}
	}
}

// Widget prints the rows of a widget and its paging state.
func (r *Renderer) Widget(view widget.View) {
	title := view.Widget.Title
	if title == "" {
		title = view.Widget.ID
	}
	r.heading.Fprintln(r.w, title)

	switch {
	case view.Loading:
		r.muted.Fprintln(r.w, "Loading...")
		return
	case view.Err != nil:
		r.failure.Fprintf(r.w, "Failed to load: %v\n", view.Err)
		return
	case len(view.Rows) == 0:
		r.muted.Fprintln(r.w, "No rows")
		return
	}

	columns := view.Widget.Columns()
	table := tablewriter.NewWriter(r.w)
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Title
		if header[i] == "" {
			header[i] = col.ID
		}
	}
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, row := range view.Rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatCell(dashboard.RenderCell(col, row))
		}
		table.Append(cells)
	}
	table.Render()

	fmt.Fprintf(r.w, "%d rows", view.Total)
	switch {
	case view.LoadingMore:
		fmt.Fprint(r.w, ", loading more...")
	case view.CanLoadMore:
		fmt.Fprintf(r.w, ", more available after %s", view.NextCursor)
	}
	fmt.Fprintln(r.w)
	if view.LoadMoreErr != nil {
		r.failure.Fprintf(r.w, "Load more failed: %v\n", view.LoadMoreErr)
	}
}

// Page prints every widget of a page in order.
func (r *Renderer) Page(page dashboard.Page, views []widget.View, skipped []dashboard.Widget) {
	title := page.Title
	if title == "" {
		title = page.Slug
	}
	r.heading.Fprintf(r.w, "== %s ==\n", title)
	for _, view := range views {
		fmt.Fprintln(r.w)
		r.Widget(view)
	}
	for _, w := range skipped {
		fmt.Fprintln(r.w)
		r.muted.Fprintf(r.w, "%s: unsupported widget type %q\n", w.ID, w.Type)
	}
}

func formatCell(cell dashboard.Cell) string {
	if cell.URL == "" {
		return cell.Text
	}
	if cell.External {
		return fmt.Sprintf("%s <%s>", cell.Text, cell.URL)
	}
	return fmt.Sprintf("%s [%s]", cell.Text, cell.URL)
}
