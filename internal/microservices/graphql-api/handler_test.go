package graphqlapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type helloResolver struct{}

func (helloResolver) Hello(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return "world"
}

type traceKey struct{}

// recordingPlugin notes the order hooks run in.
type recordingPlugin struct {
	name     string
	log      *[]string
	startErr error
}

func (p recordingPlugin) RequestDidStart(ctx context.Context, req *Request) (context.Context, error) {
	*p.log = append(*p.log, "start:"+p.name)
	if p.startErr != nil {
		return nil, p.startErr
	}
	return context.WithValue(ctx, traceKey{}, p.name), nil
}

func (p recordingPlugin) WillSendResponse(ctx context.Context, resp *graphql.Response) {
	*p.log = append(*p.log, "send:"+p.name)
}

func newSchema() *graphql.Schema {
	return graphql.MustParseSchema(`schema { query: Query } type Query { hello: String! }`, &helloResolver{})
}

func TestExecuteRunsPluginsAroundSchema(t *testing.T) {
	var log []string
	h := NewHandler(newSchema(), nil,
		recordingPlugin{name: "a", log: &log},
		recordingPlugin{name: "b", log: &log},
	)

	resp, status := h.Execute(context.Background(), &Request{Query: "{ hello }"})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"hello":"b"}`, string(resp.Data), "resolvers see the context of the last plugin")
	assert.Equal(t, []string{"start:a", "start:b", "send:b", "send:a"}, log)
}

func TestExecuteStopsOnPluginStartFailure(t *testing.T) {
	var log []string
	h := NewHandler(newSchema(), nil,
		recordingPlugin{name: "a", log: &log},
		recordingPlugin{name: "b", log: &log, startErr: errors.New("no tx")},
		recordingPlugin{name: "c", log: &log},
	)

	resp, status := h.Execute(context.Background(), &Request{Query: "{ hello }"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, []string{"start:a", "start:b", "send:a"}, log, "only started plugins finish")
}

func TestServeHTTP(t *testing.T) {
	h := NewHandler(newSchema(), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{"query":"{ hello }"}`))
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"hello":"world"}}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
