// Package graphqlapi serves the media GraphQL schema over HTTP and runs request
// lifecycle plugins around every execution.
package graphqlapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
)

// Request is the JSON body of a GraphQL POST.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Plugin hooks into the lifecycle of one GraphQL request. RequestDidStart runs before
// execution and may replace the context handed to resolvers; WillSendResponse runs
// after execution, in reverse plugin order, and may rewrite the response.
type Plugin interface {
	RequestDidStart(ctx context.Context, req *Request) (context.Context, error)
	WillSendResponse(ctx context.Context, resp *graphql.Response)
}

// Handler executes GraphQL requests against Schema.
type Handler struct {
	Schema  *graphql.Schema
	Plugins []Plugin
	Logger  *slog.Logger
}

func NewHandler(schema *graphql.Schema, logger *slog.Logger, plugins ...Plugin) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Schema: schema, Plugins: plugins, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("only POST is supported"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	resp, status := h.Execute(r.Context(), &req)
	writeJSON(w, status, resp)
}

// Execute runs req through the plugins and the schema and returns the response with
// the HTTP status it should be sent with.
func (h *Handler) Execute(ctx context.Context, req *Request) (*graphql.Response, int) {
	status := http.StatusOK
	started := make([]Plugin, 0, len(h.Plugins))

	var resp *graphql.Response
	for _, p := range h.Plugins {
		next, err := p.RequestDidStart(ctx, req)
		if err != nil {
			h.Logger.Error("graphql_plugin_start_failed",
				"operation", req.OperationName,
				"error", err,
			)
			resp = errorResponse("service unavailable")
			status = http.StatusServiceUnavailable
			break
		}
		ctx = next
		started = append(started, p)
	}

	if resp == nil {
		resp = h.Schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	}

	for i := len(started) - 1; i >= 0; i-- {
		started[i].WillSendResponse(ctx, resp)
	}
	return resp, status
}

func errorResponse(msg string) *graphql.Response {
	return &graphql.Response{Errors: []*gqlerrors.QueryError{{Message: msg}}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
