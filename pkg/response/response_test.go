package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func perform(t *testing.T, method string, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Handle(method, "/", handler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, "/", nil))
	return w
}

func TestSuccess_StatusByMethod(t *testing.T) {
	w := perform(t, "GET", func(c *gin.Context) { Success(c, gin.H{"ok": true}) })
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(t, "POST", func(c *gin.Context) { Success(c, gin.H{"ok": true}) })
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandle_GormNotFound(t *testing.T) {
	w := perform(t, "GET", func(c *gin.Context) { Handle(c, nil, gorm.ErrRecordNotFound) })
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestErrorHelpers(t *testing.T) {
	cases := []struct {
		name    string
		handler gin.HandlerFunc
		status  int
		code    string
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "bad") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "no") }, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "no") }, http.StatusForbidden, ErrCodeForbidden},
		{"payment required", func(c *gin.Context) { PaymentRequired(c, "broke") }, http.StatusPaymentRequired, ErrCodePaymentRequired},
		{"conflict", func(c *gin.Context) { Conflict(c, "taken") }, http.StatusConflict, ErrCodeConflict},
		{"bad gateway", func(c *gin.Context) { BadGateway(c, "upstream") }, http.StatusBadGateway, ErrCodeUpstreamError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := perform(t, "GET", tc.handler)
			assert.Equal(t, tc.status, w.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}
