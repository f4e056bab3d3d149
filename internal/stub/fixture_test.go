package stub

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
)

const sampleFixture = `
config:
  title: Sample
  menu:
    - title: Orders
      page: orders
  pages:
    - slug: orders
      widgets:
        - id: orders
          type: table
          table:
            columns: [id, customer]
            filters:
              - id: customer
                type: text
                operators: [contains]
datasets:
  orders:
    cursor: id
    rows:
      - {id: 1, customer: Acme}
      - {id: 2, customer: Globex}
      - {id: 3, customer: Acme Labs}
`

func TestParseFixture(t *testing.T) {
	fx, err := ParseFixture([]byte(sampleFixture))
	require.NoError(t, err)

	widget, ok := fx.Config.FindWidget("orders")
	require.True(t, ok)
	require.Equal(t, "customer", widget.Columns()[1].Title)

	resp := page(fx.Datasets["orders"], []condition{{
		spec:   widget.Filters()[0],
		op:     "contains",
		values: []string{"acme"},
	}}, 10, "1")
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Acme Labs", resp.Data[0]["customer"])
}

func TestLoadFixtureFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFixture), 0o600))
	fx, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, fx.Datasets["orders"].Rows, 3)

	if _, err := LoadFixture(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseFixtureRejectsBadDocuments(t *testing.T) {
	_, err := ParseFixture([]byte("config:\n  pages:\n    - slug: a\n      widgets:\n        - id: w\n          type: table\n          table:\n            filters:\n              - id: f\n                type: nope\n"))
	if !errors.Is(err, dashboard.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	_, err = ParseFixture([]byte("config:\n  title: x\ndatasets:\n  ghost:\n    cursor: id\n"))
	require.ErrorContains(t, err, `dataset "ghost" has no widget`)
}

func TestDefaultFixtureIsValid(t *testing.T) {
	fx := DefaultFixture()
	require.NoError(t, fx.validate())
	require.Len(t, fx.Datasets["users_table"].Rows, 120)
	reports := fx.Datasets["reports_table"].Rows
	require.Len(t, reports, 30)
	require.Equal(t, "2024-W03", reports[2]["week"])
	require.Equal(t, "delayed", reports[2]["status"])
	require.Equal(t, "Ops", reports[1]["owner"])
}
