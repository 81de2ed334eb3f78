package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clubmedia/internal/microservices/graphql-api/schema"
	"clubmedia/internal/microservices/http-api/handler"
	"clubmedia/internal/microservices/http-api/repository"
	"clubmedia/internal/microservices/http-api/service"
	"clubmedia/internal/observability"
	"clubmedia/internal/txscope"
)

func newTestRouter(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	client := txscope.NewGormClient(db)
	clubRepo := repository.NewClubRepository(db)
	mediaSvc := service.NewMediaService(repository.NewMediaRepository(db), clubRepo)
	mediaHandler := handler.NewMediaHandler(mediaSvc)
	gqlSchema, err := schema.New(mediaSvc)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, observability.Register(reg))

	return newRouter(routerDeps{
		HTTPScope:   txscope.NewCoordinator[*gorm.DB](client, txscope.Options{Name: "http"}),
		GraphQL:     gqlSchema,
		GQLScope:    txscope.NewCoordinator[*gorm.DB](client, txscope.Options{Name: "graphql"}),
		Media:       mediaHandler,
		Clubs:       handler.NewClubHandler(service.NewClubService(clubRepo), mediaHandler),
		Metrics:     reg,
		CORSOrigins: []string{"http://app.test"},
	}), mock
}

func TestHealthAndMetrics(t *testing.T) {
	r, mock := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clubmedia_http_requests_total")

	assert.NoError(t, mock.ExpectationsWereMet(), "health checks open no transaction")
}

func TestAPIRequestsRunInATransaction(t *testing.T) {
	r, mock := newTestRouter(t)

	// invalid id: handled inside the scope, answered 400, rolled back
	mock.ExpectBegin()
	mock.ExpectRollback()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/media/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphQLOpensItsOwnScope(t *testing.T) {
	r, mock := newTestRouter(t)

	// one transaction from the GraphQL plugin, none from the HTTP middleware
	mock.ExpectBegin()
	mock.ExpectRollback()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ media(id: \"abc\") { id } }"}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalid id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/media", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))
}
