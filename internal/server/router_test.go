package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	handler "bidout-auction/services/bidding/handler"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := SetupRouter(handler.NewMockBiddingServiceInterface(ctrl))

	want := map[string]bool{
		"POST /listings":                      true,
		"GET /listings/:slug":                 true,
		"PATCH /listings/:slug/active":        true,
		"GET /listings/:slug/bids":            true,
		"POST /listings/:slug/bids":           true,
		"GET /listings/:slug/winning":         true,
		"GET /auctioneer/listings/:slug/bids": true,
		"GET /users/:user_id/listings":        true,
	}
	for _, r := range router.Routes() {
		delete(want, r.Method+" "+r.Path)
	}
	require.Empty(t, want, "routes not registered")
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware, RequestLoggerMiddleware)
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))
	require.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestProtectedRoutesNeedUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := SetupRouter(handler.NewMockBiddingServiceInterface(ctrl))

	for _, r := range []struct{ method, path string }{
		{http.MethodPost, "/listings"},
		{http.MethodPatch, "/listings/camera/active"},
		{http.MethodPost, "/listings/camera/bids"},
		{http.MethodGet, "/auctioneer/listings/camera/bids"},
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(r.method, r.path, nil))
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", r.method, r.path)
	}
}
