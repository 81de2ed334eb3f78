package txscope

import (
	"context"
	"errors"
	"log/slog"

	"github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"

	graphqlapi "clubmedia/internal/microservices/graphql-api"
)

type graphqlScopeKey[T any] struct{}

// GraphQLPlugin is the request-lifecycle variant of Middleware for the GraphQL
// endpoint. The scope begins when the request starts and ends when the response is
// about to be sent; a response carrying errors rolls the transaction back.
type GraphQLPlugin[T any] struct {
	coord  *Coordinator[T]
	logger *slog.Logger
}

var _ graphqlapi.Plugin = (*GraphQLPlugin[any])(nil)

func NewGraphQLPlugin[T any](coord *Coordinator[T], logger *slog.Logger) *GraphQLPlugin[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphQLPlugin[T]{coord: coord, logger: logger}
}

func (p *GraphQLPlugin[T]) RequestDidStart(ctx context.Context, req *graphqlapi.Request) (context.Context, error) {
	rc := NewRequestContext[T]()
	ctx = WithRequestContext(ctx, rc)

	scope, err := p.coord.Begin(ctx, rc)
	if err != nil {
		p.logger.Error("txscope_begin_failed",
			"scope", p.coord.Name(),
			"operation", req.OperationName,
			"error", err,
		)
		return nil, err
	}
	return context.WithValue(ctx, graphqlScopeKey[T]{}, scope), nil
}

func (p *GraphQLPlugin[T]) WillSendResponse(ctx context.Context, resp *graphql.Response) {
	scope, ok := ctx.Value(graphqlScopeKey[T]{}).(*Scope[T])
	if !ok {
		return
	}

	var outcome error
	if len(resp.Errors) > 0 {
		outcome = resp.Errors[0]
	}

	if err := scope.End(outcome); err != nil && !errors.Is(err, ErrRolledBack) {
		p.logger.Error("txscope_end_failed", "scope", p.coord.Name(), "error", err)
		// nothing the resolvers wrote was kept, so do not report their data
		resp.Data = nil
		resp.Errors = append(resp.Errors, &gqlerrors.QueryError{Message: "internal server error"})
	}
}
