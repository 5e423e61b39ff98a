package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go-firestore-admin/internal/blob"
	"go-firestore-admin/internal/database/memory"
	categoryPublisher "go-firestore-admin/internal/eventpublisher/category"
	"go-firestore-admin/internal/projection"
	productRepository "go-firestore-admin/internal/repository/product"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestServerRoutes(t *testing.T) {
	repo := productRepository.New(memory.New(), blob.NewMemoryStore())
	e := newServer(repo, categoryPublisher.New(projection.NewView(repo)))

	for target, status := range map[string]int{
		"/health":                      http.StatusOK,
		"/metrics":                     http.StatusOK,
		"/api/products":                http.StatusOK,
		"/api/products/missing":        http.StatusNotFound,
		"/api/categories/distribution": http.StatusServiceUnavailable,
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, status, rec.Code, target)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID), target)
	}
}
