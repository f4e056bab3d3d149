// Package stub serves dashboard config and widget rows from in-memory
// fixtures, for local development and end-to-end tests.
package stub

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
)

// Fixture is the document served by the stub server.
type Fixture struct {
	Config   dashboard.AppConfig `yaml:"config"`
	Datasets map[string]Dataset  `yaml:"datasets"`
}

// Dataset holds the rows of one widget. Cursor names the column whose value
// is echoed as next_cursor and matched against offset.
type Dataset struct {
	Cursor string          `yaml:"cursor"`
	Rows   []dashboard.Row `yaml:"rows"`
}

// LoadFixture reads a YAML fixture from path.
func LoadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("stub: read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes and validates a YAML fixture.
func ParseFixture(raw []byte) (Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return Fixture{}, fmt.Errorf("stub: decode fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return Fixture{}, err
	}
	return fx, nil
}

func (fx Fixture) validate() error {
	if err := dashboard.Validate(fx.Config); err != nil {
		return err
	}
	for id, ds := range fx.Datasets {
		if _, ok := fx.Config.FindWidget(id); !ok {
			return fmt.Errorf("stub: dataset %q has no widget", id)
		}
		if ds.Cursor == "" {
			return fmt.Errorf("stub: dataset %q needs a cursor column", id)
		}
	}
	return nil
}

var usersEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultFixture is the built-in demo: 120 users and 30 weekly reports.
func DefaultFixture() Fixture {
	users := make([]dashboard.Row, 0, 120)
	for id := 1; id <= 120; id++ {
		users = append(users, dashboard.Row{
			"id":         id,
			"name":       fmt.Sprintf("User %d", id),
			"email":      fmt.Sprintf("user%d@example.com", id),
			"created_at": usersEpoch.Add(time.Duration(id) * 6 * time.Hour).Unix(),
		})
	}

	reports := make([]dashboard.Row, 0, 30)
	for week := 1; week <= 30; week++ {
		status := "ok"
		if week%3 == 0 {
			status = "delayed"
		}
		owner := "Finance"
		if week%2 == 0 {
			owner = "Ops"
		}
		reports = append(reports, dashboard.Row{
			"week":   fmt.Sprintf("2024-W%02d", week),
			"status": status,
			"owner":  owner,
		})
	}

	return Fixture{
		Config: dashboard.AppConfig{
			Title: "Stub Admin",
			Menu: []dashboard.MenuItem{
				{Title: "Users", Page: "users"},
				{Title: "Reports", Children: []dashboard.MenuItem{
					{Title: "Weekly", Page: "reports"},
				}},
				{Title: "Docs", Href: "https://example.com/docs"},
			},
			Pages: []dashboard.Page{
				{
					Slug:  "users",
					Title: "Users",
					Widgets: []dashboard.Widget{{
						ID:    "users_table",
						Title: "Users",
						Type:  dashboard.WidgetTable,
						Table: &dashboard.TableSpec{
							Columns: []dashboard.ColumnSpec{
								{ID: "id", Title: "ID"},
								{ID: "name", Title: "Name", Render: &dashboard.ColumnRender{
									Type: "link", Text: "{{name}}", URL: "/users/{{id}}",
								}},
								{ID: "email", Title: "Email", Render: &dashboard.ColumnRender{
									Type: "link", URL: "mailto:{{email}}", External: true,
								}},
								{ID: "created_at", Title: "Created"},
							},
							Filters: []dashboard.FilterSpec{
								{ID: "name", Title: "Name", Type: dashboard.FilterText, Operators: []string{"contains", "eq"}},
								{ID: "id", Title: "ID", Type: dashboard.FilterNumber, Operators: []string{"eq", "gt", "lt", "between"}},
								{ID: "created", Title: "Created", Type: dashboard.FilterDateTime, Target: "created_at", Operators: []string{"after", "before", "between"}},
							},
						},
					}},
				},
				{
					Slug:  "reports",
					Title: "Weekly reports",
					Widgets: []dashboard.Widget{{
						ID:    "reports_table",
						Title: "Weekly reports",
						Type:  dashboard.WidgetTable,
						Table: &dashboard.TableSpec{
							Columns: []dashboard.ColumnSpec{
								{ID: "week", Title: "Week"},
								{ID: "status", Title: "Status"},
								{ID: "owner", Title: "Owner"},
							},
							Filters: []dashboard.FilterSpec{
								{ID: "status", Title: "Status", Type: dashboard.FilterSelectOne, Values: []dashboard.ValueOption{
									{Value: "ok", Label: "OK"},
									{Value: "delayed", Label: "Delayed"},
								}},
								{ID: "owner", Title: "Owner", Type: dashboard.FilterSelectMulti, Values: []dashboard.ValueOption{
									{Value: "Ops", Label: "Ops"},
									{Value: "Finance", Label: "Finance"},
								}},
							},
						},
					}},
				},
			},
		},
		Datasets: map[string]Dataset{
			"users_table":   {Cursor: "id", Rows: users},
			"reports_table": {Cursor: "week", Rows: reports},
		},
	}
}

// cursorValue renders a row's cursor column the way it appears in a URL.
func cursorValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
