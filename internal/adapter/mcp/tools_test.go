package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/guillermoBallester/audiencelens/internal/adapter/llm"
	"github.com/guillermoBallester/audiencelens/internal/audit"
	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock SQLGenerator ---

type stubGenerator struct {
	sql string
	err error
}

func (g stubGenerator) Generate(context.Context, string, domain.Policy) (string, error) {
	return g.sql, g.err
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sessionCounter gives every call its own session so one server can be
// called repeatedly.
var sessionCounter atomic.Int64

func rpc(t *testing.T, s *server.MCPServer, method string, params map[string]any) json.RawMessage {
	t.Helper()
	ctx := context.Background()
	session := server.NewInProcessSession(fmt.Sprintf("test-%d", sessionCounter.Add(1)), nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	sessionCtx := s.WithContext(ctx, session)

	// Initialize session.
	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "call-1", "method": method, "params": params,
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var out struct {
		Result json.RawMessage           `json:"result"`
		Error  *struct{ Message string } `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &out))
	require.Nil(t, out.Error, "unexpected RPC error: %v", out.Error)
	return out.Result
}

func callTool(t *testing.T, s *server.MCPServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	raw := rpc(t, s, "tools/call", map[string]any{"name": toolName, "arguments": args})

	var result mcp.CallToolResult
	require.NoError(t, json.Unmarshal(raw, &result))
	return &result
}

func toolNames(t *testing.T, s *server.MCPServer) []string {
	t.Helper()
	var list struct {
		Tools []struct{ Name string } `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rpc(t, s, "tools/list", map[string]any{}), &list))
	names := make([]string, 0, len(list.Tools))
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func toolText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return ""
	}
	return tc.Text
}

func decode[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, "unexpected tool error: %s", toolText(result))
	var v T
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &v))
	return v
}

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	cat, err := domain.NewCatalog([]domain.Table{
		{
			Name:        "customers",
			Description: "Shop customers",
			Columns: []domain.Column{
				{Name: "id", Type: "integer", IsPrimaryKey: true},
				{Name: "email", Type: "text", Mask: domain.MaskRedact},
				{Name: "tier", Type: "text", Cardinality: domain.CardinalityEnumLike, Values: []string{"gold", "silver"}},
				{Name: "signup_date", Type: "date"},
			},
			SampleRows: []domain.Row{
				{"id": 1, "email": "ada@example.com", "tier": "gold", "signup_date": "2026-08-01"},
				{"id": 2, "email": "bob@example.com", "tier": "silver", "signup_date": "2026-09-15"},
			},
		},
		{Name: "raw_logs", Columns: []domain.Column{{Name: "line", Type: "text"}}},
	})
	require.NoError(t, err)
	return cat
}

func setupServer(t *testing.T, gen *stubGenerator) *server.MCPServer {
	t.Helper()
	logger := discardLogger()
	store := service.NewCatalogStore(testCatalog(t))
	preview := service.NewPreviewService(store, domain.DefaultPolicy(), domain.NewPgQueryValidator(),
		audit.NoopAuditor{}, logger, nil, nil)

	svc := Services{
		Catalog: service.NewCatalogService(store, nil, logger),
		Preview: preview,
	}
	if gen != nil {
		svc.Generate = service.NewGenerateService(gen, preview, logger, nil)
	}
	return NewServer("0.1.0", svc, logger, nil, nil)
}

const goldCustomers = "SELECT id, email FROM customers WHERE tier = 'gold' AND signup_date > NOW() - INTERVAL '90 days' LIMIT 50"

// --- tests ---

func TestRegisterTools_GenerateOnlyWhenConfigured(t *testing.T) {
	base := []string{"list_tables", "describe_table", "extract_query", "analyze_query", "detect_defects", "preview_query", "fix_limit"}

	assert.ElementsMatch(t, base, toolNames(t, setupServer(t, nil)))
	assert.ElementsMatch(t, append(base, "generate_query"), toolNames(t, setupServer(t, &stubGenerator{})))
}

func TestToolDescriptions_MatchReports(t *testing.T) {
	var list struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rpc(t, setupServer(t, nil), "tools/list", map[string]any{}), &list))
	desc := make(map[string]string, len(list.Tools))
	for _, tool := range list.Tools {
		desc[tool.Name] = tool.Description
	}

	assert.NotContains(t, desc["analyze_query"], "SELECT *")
	assert.Contains(t, desc["analyze_query"], "disallowed tables")
	assert.NotContains(t, desc["detect_defects"], "missing clauses")
	assert.Contains(t, desc["detect_defects"], "placeholder columns")

	// Analyze leaves statement type and SELECT * alone.
	report := decode[domain.SafetyReport](t, callTool(t, setupServer(t, nil), "analyze_query",
		map[string]any{"sql": "DELETE FROM customers WHERE signup_date > NOW() LIMIT 5"}))
	assert.True(t, report.IsValid)
	report = decode[domain.SafetyReport](t, callTool(t, setupServer(t, nil), "analyze_query",
		map[string]any{"sql": "SELECT * FROM customers WHERE signup_date > NOW() LIMIT 5"}))
	assert.Empty(t, report.Warnings)
}

func TestListTables(t *testing.T) {
	tables := decode[[]service.TableSummary](t, callTool(t, setupServer(t, nil), "list_tables", nil))
	require.Len(t, tables, 2)
	assert.Equal(t, service.TableSummary{Name: "customers", Description: "Shop customers", Columns: 4, SampleRows: 2}, tables[0])
}

func TestDescribeTable_HappyPath(t *testing.T) {
	tbl := decode[domain.Table](t, callTool(t, setupServer(t, nil), "describe_table", map[string]any{"table_name": "customers"}))

	assert.Equal(t, "customers", tbl.Name)
	require.Len(t, tbl.Columns, 4)
	assert.True(t, tbl.Columns[0].IsPrimaryKey)
	assert.Equal(t, []string{"gold", "silver"}, tbl.Columns[2].Values)
	assert.Equal(t, "***", tbl.SampleRows[0]["email"])
}

func TestDescribeTable_MissingTableName(t *testing.T) {
	result := callTool(t, setupServer(t, nil), "describe_table", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "table_name is required")
}

func TestDescribeTable_NotFound(t *testing.T) {
	result := callTool(t, setupServer(t, nil), "describe_table", map[string]any{"table_name": "visitors"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "visitors")
	assert.Contains(t, toolText(result), "not found")
}

func TestExtractQuery(t *testing.T) {
	q := decode[domain.ParsedQuery](t, callTool(t, setupServer(t, nil), "extract_query", map[string]any{"sql": goldCustomers}))

	assert.Equal(t, []string{"customers"}, q.Tables)
	assert.Equal(t, []string{"id", "email"}, q.Columns)
	require.NotNil(t, q.Limit)
	assert.Equal(t, 50, *q.Limit)
	assert.Contains(t, q.Conditions, domain.Condition{Column: "tier", Operator: domain.OpEq, Value: "gold"})
}

func TestAnalyzeQuery(t *testing.T) {
	s := setupServer(t, nil)

	ok := decode[domain.SafetyReport](t, callTool(t, s, "analyze_query", map[string]any{"sql": goldCustomers}))
	assert.True(t, ok.IsValid)
	assert.True(t, ok.HasDateFilter)
	assert.True(t, ok.HasResultLimit)

	bad := decode[domain.SafetyReport](t, callTool(t, s, "analyze_query", map[string]any{"sql": "SELECT line FROM raw_logs LIMIT 5"}))
	assert.False(t, bad.IsValid)
	require.Len(t, bad.Errors, 1)
	assert.Contains(t, bad.Errors[0], "raw_logs")
}

func TestDetectDefects(t *testing.T) {
	s := setupServer(t, nil)

	got := decode[map[string]*domain.Defect](t, callTool(t, s, "detect_defects", map[string]any{"sql": "SELECT id\nFROM visitors"}))
	require.NotNil(t, got["defect"])
	assert.Equal(t, 2, got["defect"].Line)

	clean := decode[map[string]*domain.Defect](t, callTool(t, s, "detect_defects", map[string]any{"sql": goldCustomers}))
	assert.Nil(t, clean["defect"])
}

func TestPreviewQuery(t *testing.T) {
	resp := decode[service.PreviewResponse](t, callTool(t, setupServer(t, nil), "preview_query", map[string]any{"sql": goldCustomers}))

	assert.False(t, resp.Blocked)
	assert.NotEmpty(t, resp.RunID)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Rows, 1)
	assert.Equal(t, float64(1), resp.Result.Rows[0]["id"])
	assert.Equal(t, "***", resp.Result.Rows[0]["email"])
}

func TestPreviewQuery_Blocked(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		reason string
	}{
		{"unknown table", "SELECT id FROM visitors LIMIT 5", service.BlockDefect},
		{"not a select", "DELETE FROM customers", service.BlockInvalidStatement},
		{"disallowed table", "SELECT line FROM raw_logs WHERE created_at > NOW() - INTERVAL '1 day' LIMIT 5", service.BlockPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, setupServer(t, nil), "preview_query", map[string]any{"sql": tt.sql})
			resp := decode[service.PreviewResponse](t, result)
			assert.True(t, resp.Blocked)
			assert.Equal(t, tt.reason, resp.BlockReason)
			assert.Nil(t, resp.Result)
		})
	}
}

func TestPreviewQuery_MissingSQL(t *testing.T) {
	result := callTool(t, setupServer(t, nil), "preview_query", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "sql is required")
}

func TestPreviewQuery_BlankSQL(t *testing.T) {
	result := callTool(t, setupServer(t, nil), "preview_query", map[string]any{"sql": "   "})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "empty query")
}

func TestFixLimit(t *testing.T) {
	s := setupServer(t, nil)

	got := decode[map[string]any](t, callTool(t, s, "fix_limit", map[string]any{"sql": "SELECT id FROM customers"}))
	assert.Equal(t, "SELECT id FROM customers LIMIT 1000", got["sql"])
	assert.Equal(t, true, got["changed"])

	same := decode[map[string]any](t, callTool(t, s, "fix_limit", map[string]any{"sql": goldCustomers}))
	assert.Equal(t, goldCustomers, same["sql"])
	assert.Equal(t, false, same["changed"])
}

func TestGenerateQuery(t *testing.T) {
	gen := &stubGenerator{sql: "SELECT id FROM customers WHERE tier = 'gold'"}
	resp := decode[service.GenerateResponse](t, callTool(t, setupServer(t, gen), "generate_query", map[string]any{"prompt": "gold customers"}))

	assert.Equal(t, gen.sql+" LIMIT 1000", resp.SQL)
	assert.True(t, resp.LimitAdded)
	assert.Nil(t, resp.Defect)
}

func TestGenerateQuery_UpstreamError(t *testing.T) {
	gen := &stubGenerator{err: &llm.Error{Kind: llm.KindRateLimited, StatusCode: 429}}
	result := callTool(t, setupServer(t, gen), "generate_query", map[string]any{"prompt": "gold customers"})

	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "rate_limited")
}

// --- sanitizeError tests ---

func TestSanitizeError_Passthrough(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"empty query", domain.ErrEmptyQuery, "empty query"},
		{"not allowed", domain.ErrNotAllowed, "only SELECT"},
		{"multi statement", domain.ErrMultiStatement, "multiple statements"},
		{"parse error", fmt.Errorf("%w: syntax error", domain.ErrParseFailed), "failed to parse SQL"},
		{"not found", fmt.Errorf("%w: table %q", domain.ErrNotFound, "visitors"), "visitors"},
		{"empty prompt", service.ErrEmptyPrompt, "empty prompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, sanitizeError(discardLogger(), tt.err, "preview query"), tt.contains)
		})
	}
}

func TestSanitizeError_Timeout(t *testing.T) {
	msg := sanitizeError(discardLogger(), fmt.Errorf("reload: %w", context.DeadlineExceeded), "reload catalog")
	assert.Equal(t, "reload catalog timed out", msg)
}

func TestSanitizeError_Generic(t *testing.T) {
	msg := sanitizeError(discardLogger(), errors.New("bucket catalogs: connection refused 10.0.0.12"), "describe table")
	assert.Contains(t, msg, "internal error")
	assert.Contains(t, msg, "check server logs")
	assert.NotContains(t, msg, "10.0.0.12")
}
