package graphql

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	gql "github.com/graph-gophers/graphql-go"
	gqlotel "github.com/graph-gophers/graphql-go/trace/otel"
	"github.com/pointboard/forum/internal/api/middleware/auth"
	"github.com/pointboard/forum/internal/database"
	"github.com/pointboard/forum/internal/loader"
	"go.uber.org/zap"
)

//go:embed schema.graphql
var schemaSDL string

const (
	// MaxBodyBytes bounds the size of a request body.
	MaxBodyBytes = 1 << 20
	// MaxQueryDepth bounds selection set nesting.
	MaxQueryDepth = 10
	// MaxParallelism bounds concurrently running field resolvers per request.
	MaxParallelism = 16
)

// Request is a GraphQL request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Handler serves GraphQL requests over HTTP. POST executes a request, GET
// serves the GraphiQL page when enabled.
type Handler struct {
	schema     *gql.Schema
	db         database.Client
	logger     *zap.Logger
	playground []byte
}

// NewHandler parses the schema and creates a new handler.
func NewHandler(db database.Client, logger *zap.Logger, playground bool) (*Handler, error) {
	logger = logger.Named("graphql")

	schema, err := gql.ParseSchema(schemaSDL, NewResolver(db, logger),
		gql.MaxDepth(MaxQueryDepth),
		gql.MaxParallelism(MaxParallelism),
		gql.Tracer(gqlotel.DefaultTracer()),
		gql.Logger(&panicLogger{logger: logger}),
		gql.UseStringDescriptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse graphql schema: %w", err)
	}

	h := &Handler{
		schema: schema,
		db:     db,
		logger: logger,
	}

	if playground {
		h.playground, err = playgroundPage()
		if err != nil {
			return nil, err
		}
	}

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.serveQuery(w, r)
	case http.MethodGet:
		if h.playground == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(h.playground)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveQuery(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		http.Error(w, "content type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	var req Request
	if err := sonic.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "missing query", http.StatusBadRequest)
		return
	}

	ctx := h.requestContext(r.Context())
	response := h.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)

	payload, err := sonic.Marshal(response)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// requestContext attaches the per-request vote status loader for
// authenticated callers.
func (h *Handler) requestContext(ctx context.Context) context.Context {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return ctx
	}
	return loader.WithVoteStatuses(ctx, loader.NewVoteStatuses(h.db.Service().Feed().VoteStatuses, userID))
}

// panicLogger reports resolver panics through zap.
type panicLogger struct {
	logger *zap.Logger
}

func (l *panicLogger) LogPanic(_ context.Context, value any) {
	l.logger.Error("Resolver panicked", zap.Any("panic", value), zap.Stack("stack"))
}
