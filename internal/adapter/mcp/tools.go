package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/audiencelens/internal/adapter/llm"
	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "audiencelens"

// Tool descriptions
const (
	descListTables = "List the tables in the audience catalog with their description, column count, " +
		"and number of sample rows. Call this first to learn which tables an audience query may use."

	descDescribeTable = "Describe one catalog table: columns with types, primary and foreign keys, " +
		"cardinality classes and known values for low-cardinality columns, and masked sample rows. " +
		"Use foreign keys for JOIN paths and the listed values for equality filters."

	descExtractQuery = "Extract the structural facts of a SQL query without evaluating it: referenced tables, " +
		"selected columns, WHERE conditions the previewer understands, and the LIMIT. " +
		"Conditions joined by OR are reported with has_disjunction set."

	descAnalyzeQuery = "Check a SQL query against the audience safety policy. Returns is_valid, errors that block " +
		"the query (disallowed tables), and warnings: too many referenced tables, missing date filter, missing LIMIT " +
		"or a LIMIT above the hard cap, tables outside the allowed list, and filter values that look like SQL injection. " +
		"Also reports the INTERVAL date span and whether an optimized view is used. Statement type is not checked here; " +
		"preview_query rejects anything but a single SELECT."

	descDetectDefects = "Find the first defect in a SQL query that would make it fail against the catalog, checked in " +
		"order: unknown tables, placeholder columns (undefined, null_column) in the select list, misspelled " +
		"SELECT/FROM/WHERE keywords, and unqualified columns in a JOIN. Returns the 1-based line number and a " +
		"suggestion, or null when the query looks sound."

	descPreviewQuery = "Preview the audience a SELECT query would return by evaluating it against the catalog's " +
		"sample rows. No database is touched. Masked columns are redacted. The run is blocked, with a reason, " +
		"when the query has a defect, is not a single SELECT, or violates the policy."

	descFixLimit = "Append the policy's default LIMIT to a query that has none. Queries that already carry a " +
		"LIMIT are returned unchanged."

	descGenerateQuery = "Turn a natural-language audience description into SQL with the configured model. " +
		"The result has the default LIMIT applied and is returned with its safety report and first defect. " +
		"Run preview_query on it before using it."

	descSQLParam    = "SQL query text"
	descTableParam  = "Name of the table to describe"
	descPromptParam = "Audience description, for example 'customers who ordered in the last 30 days'"
)

// Services are the application services the tools call. Generate is
// optional; generate_query is only registered when it is set.
type Services struct {
	Catalog  *service.CatalogService
	Preview  *service.PreviewService
	Generate *service.GenerateService
}

func RegisterTools(s *server.MCPServer, svc Services, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		listTablesHandler(svc.Catalog),
	)

	s.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(descDescribeTable),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descTableParam),
			),
		),
		describeTableHandler(svc.Catalog, logger),
	)

	s.AddTool(
		mcp.NewTool("extract_query",
			mcp.WithDescription(descExtractQuery),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("sql", mcp.Required(), mcp.Description(descSQLParam)),
		),
		sqlHandler(func(ctx context.Context, sql string) (any, error) {
			return svc.Preview.Extract(ctx, sql), nil
		}, logger, "extract query"),
	)

	s.AddTool(
		mcp.NewTool("analyze_query",
			mcp.WithDescription(descAnalyzeQuery),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("sql", mcp.Required(), mcp.Description(descSQLParam)),
		),
		sqlHandler(func(ctx context.Context, sql string) (any, error) {
			return svc.Preview.Analyze(service.WithToolName(ctx, "analyze_query"), sql), nil
		}, logger, "analyze query"),
	)

	s.AddTool(
		mcp.NewTool("detect_defects",
			mcp.WithDescription(descDetectDefects),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("sql", mcp.Required(), mcp.Description(descSQLParam)),
		),
		sqlHandler(func(ctx context.Context, sql string) (any, error) {
			return map[string]*domain.Defect{"defect": svc.Preview.Detect(ctx, sql)}, nil
		}, logger, "detect defects"),
	)

	s.AddTool(
		mcp.NewTool("preview_query",
			mcp.WithDescription(descPreviewQuery),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("sql", mcp.Required(), mcp.Description(descSQLParam)),
		),
		sqlHandler(func(ctx context.Context, sql string) (any, error) {
			return svc.Preview.Preview(service.WithToolName(ctx, "preview_query"), sql)
		}, logger, "preview query"),
	)

	s.AddTool(
		mcp.NewTool("fix_limit",
			mcp.WithDescription(descFixLimit),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("sql", mcp.Required(), mcp.Description(descSQLParam)),
		),
		sqlHandler(func(_ context.Context, sql string) (any, error) {
			fixed := svc.Preview.FixLimit(sql)
			return map[string]any{"sql": fixed, "changed": fixed != sql}, nil
		}, logger, "fix limit"),
	)

	if svc.Generate != nil {
		s.AddTool(
			mcp.NewTool("generate_query",
				mcp.WithDescription(descGenerateQuery),
				mcp.WithOpenWorldHintAnnotation(true),
				mcp.WithString("prompt", mcp.Required(), mcp.Description(descPromptParam)),
			),
			generateHandler(svc.Generate, logger),
		)
	}
}

func listTablesHandler(catalog *service.CatalogService) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(catalog.List())
	}
}

func describeTableHandler(catalog *service.CatalogService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		tbl, err := catalog.Describe(tableName)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "describe table")), nil
		}
		return jsonResult(tbl)
	}
}

// sqlHandler adapts a single-argument SQL operation into a tool handler.
func sqlHandler(fn func(ctx context.Context, sql string) (any, error), logger *slog.Logger, op string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		out, err := fn(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, op)), nil
		}
		return jsonResult(out)
	}
}

func generateHandler(gen *service.GenerateService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, ok := request.GetArguments()["prompt"].(string)
		if !ok || prompt == "" {
			return mcp.NewToolResultError("prompt is required"), nil
		}

		resp, err := gen.Generate(ctx, prompt)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "generate query")), nil
		}
		return jsonResult(resp)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sanitizeError turns an error into a message safe to show the client.
// Input and lookup errors pass through; anything else is logged and
// replaced with a generic message.
func sanitizeError(logger *slog.Logger, err error, op string) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrNotAllowed),
		errors.Is(err, domain.ErrMultiStatement),
		errors.Is(err, domain.ErrParseFailed),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, service.ErrEmptyPrompt):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return op + " timed out"
	}

	var genErr *llm.Error
	if errors.As(err, &genErr) {
		logger.Warn("generation failed", "op", op, "error.type", string(genErr.Kind), "error", err)
		return fmt.Sprintf("%s failed: %s", op, genErr.Kind)
	}

	logger.Error("tool failed", "op", op, "error", err)
	return fmt.Sprintf("%s failed: internal error, check server logs", op)
}
