package context

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/xzzpig/graph-gateway/internal/core/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw)
	r.GET("/api/admission/config", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(gin.AuthUserKey))
	})
	return r
}

func TestBasicAuthMiddleware(t *testing.T) {
	r := newAuthRouter(BasicAuthMiddleware("admin", "secret"))

	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		wantStatus int
	}{
		{name: "valid credentials", user: "admin", pass: "secret", setAuth: true, wantStatus: http.StatusOK},
		{name: "wrong password", user: "admin", pass: "nope", setAuth: true, wantStatus: http.StatusUnauthorized},
		{name: "wrong user", user: "root", pass: "secret", setAuth: true, wantStatus: http.StatusUnauthorized},
		{name: "no credentials", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admission/config", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "admin", w.Body.String())
			} else {
				assert.Equal(t, `Basic realm="graph-gateway admin"`, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	t.Run("disabled without credentials", func(t *testing.T) {
		r := newAuthRouter(OptionalAuthMiddleware(&config.Config{}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admission/config", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disabled with nil config", func(t *testing.T) {
		r := newAuthRouter(OptionalAuthMiddleware(nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admission/config", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("enabled with credentials", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Auth.Username = "admin"
		cfg.Auth.Password = "secret"
		r := newAuthRouter(OptionalAuthMiddleware(cfg))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admission/config", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/admission/config", nil)
		req.SetBasicAuth("admin", "secret")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
