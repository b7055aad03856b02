package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/guillermoBallester/audiencelens/internal/adapter/policy"
	"github.com/guillermoBallester/audiencelens/internal/adapter/postgres"
	"github.com/guillermoBallester/audiencelens/internal/audit"
	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const e2eSchema = `
	CREATE TABLE customers (
		id         SERIAL PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		tier       TEXT NOT NULL CHECK (tier IN ('gold', 'silver', 'bronze')),
		country    TEXT NOT NULL,
		created_at DATE NOT NULL
	);
	COMMENT ON TABLE customers IS 'Registered shop customers';

	CREATE TABLE orders (
		id          SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		total       NUMERIC(10,2) NOT NULL,
		ordered_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	INSERT INTO customers (email, tier, country, created_at)
	SELECT
		'customer' || i || '@example.com',
		CASE (i % 3) WHEN 0 THEN 'gold' WHEN 1 THEN 'silver' ELSE 'bronze' END,
		CASE (i % 2) WHEN 0 THEN 'ES' ELSE 'PT' END,
		current_date - i
	FROM generate_series(1, 60) AS i;

	INSERT INTO orders (customer_id, total, ordered_at)
	SELECT (i % 60) + 1, (i * 3.5)::numeric(10,2), now() - (i || ' hours')::interval
	FROM generate_series(1, 120) AS i;
`

const e2ePolicy = `
safety:
  default_result_limit: 25
context:
  tables:
    customers:
      description: "People who bought at least once"
      columns:
        email:
          description: "Login email"
          mask: redact
`

// setupE2E starts a Postgres testcontainer, snapshots it into a catalog
// with the policy merged in, and returns a fully wired MCP server.
func setupE2E(t *testing.T) *server.MCPServer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, e2eSchema)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "ANALYZE")
	require.NoError(t, err)

	// Snapshot the live database, then serve only the snapshot.
	snap := postgres.NewSnapshotter(pool, []string{"public"}, 60)
	t.Cleanup(snap.Close)

	tables, err := service.Snapshot(ctx, snap, discardLogger(), nil)
	require.NoError(t, err)

	pol, err := policy.Parse([]byte(e2ePolicy))
	require.NoError(t, err)

	cat, err := domain.NewCatalog(policy.MergeTables(tables, pol.Context))
	require.NoError(t, err)

	logger := discardLogger()
	store := service.NewCatalogStore(cat)
	preview := service.NewPreviewService(store, pol.Safety, domain.NewPgQueryValidator(),
		audit.NoopAuditor{}, logger, nil, nil)

	return NewServer("0.0.1", Services{
		Catalog: service.NewCatalogService(store, nil, logger),
		Preview: preview,
	}, logger, nil, nil)
}

func TestE2E_MCPTools(t *testing.T) {
	s := setupE2E(t)

	t.Run("list_tables", func(t *testing.T) {
		var tables []service.TableSummary
		decodeE2E(t, callTool(t, s, "list_tables", nil), &tables)

		require.Len(t, tables, 2)
		assert.Equal(t, "customers", tables[0].Name)
		assert.Equal(t, "public", tables[0].Schema)
		assert.Equal(t, "People who bought at least once", tables[0].Description)
		assert.Equal(t, 5, tables[0].Columns)
		assert.Positive(t, tables[0].SampleRows)
	})

	t.Run("describe_table", func(t *testing.T) {
		var tbl domain.Table
		decodeE2E(t, callTool(t, s, "describe_table", map[string]any{"table_name": "orders"}), &tbl)

		cols := make(map[string]domain.Column)
		for _, c := range tbl.Columns {
			cols[c.Name] = c
		}
		assert.True(t, cols["id"].IsPrimaryKey)
		assert.Equal(t, &domain.ForeignKeyRef{Table: "customers", Column: "id"}, cols["customer_id"].ForeignKey)
	})

	t.Run("describe_table/masked_samples", func(t *testing.T) {
		var tbl domain.Table
		decodeE2E(t, callTool(t, s, "describe_table", map[string]any{"table_name": "customers"}), &tbl)

		require.NotEmpty(t, tbl.SampleRows)
		for _, row := range tbl.SampleRows {
			assert.Equal(t, "***", row["email"])
		}
	})

	t.Run("preview_query", func(t *testing.T) {
		sql := "SELECT id, email, tier FROM customers WHERE tier = 'gold' AND created_at > NOW() - INTERVAL '90 days' LIMIT 10"

		var resp service.PreviewResponse
		decodeE2E(t, callTool(t, s, "preview_query", map[string]any{"sql": sql}), &resp)

		require.False(t, resp.Blocked, "blocked: %s", resp.BlockReason)
		require.NotNil(t, resp.Result)
		assert.LessOrEqual(t, len(resp.Result.Rows), 10)
		for _, row := range resp.Result.Rows {
			assert.Equal(t, "gold", row["tier"])
			assert.Equal(t, "***", row["email"])
		}
	})

	t.Run("preview_query/unknown_table", func(t *testing.T) {
		var resp service.PreviewResponse
		decodeE2E(t, callTool(t, s, "preview_query", map[string]any{"sql": "SELECT id\nFROM shoppers\nLIMIT 5"}), &resp)

		assert.True(t, resp.Blocked)
		assert.Equal(t, service.BlockDefect, resp.BlockReason)
		require.NotNil(t, resp.Defect)
		assert.Equal(t, 2, resp.Defect.Line)
		assert.Contains(t, resp.Defect.Suggestion, "customers")
	})

	t.Run("fix_limit/policy_default", func(t *testing.T) {
		var got map[string]any
		decodeE2E(t, callTool(t, s, "fix_limit", map[string]any{"sql": "SELECT id FROM orders"}), &got)
		assert.Equal(t, "SELECT id FROM orders LIMIT 25", got["sql"])
	})
}

func decodeE2E(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, result.IsError, "unexpected tool error: %s", toolText(result))
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), v))
}
