package middleware

import (
	"cyberlearn_backend/internal/config"
	"cyberlearn_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(cfg *config.JWTConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OptionalAuthMiddleware(cfg))
	r.GET("/whoami", func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, user.UserID)
	})
	return r
}

func TestOptionalAuthMiddleware(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "secret"}
	r := newAuthRouter(cfg)

	valid, err := util.GenerateJWT("alice", "alice@example.com", cfg.Secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	expired, err := util.GenerateJWT("alice", "", cfg.Secret, -time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	foreign, err := util.GenerateJWT("alice", "", "other-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
		wantBody string
	}{
		{name: "no token", wantCode: http.StatusOK, wantBody: "anonymous"},
		{name: "bearer header", header: "Bearer " + valid, wantCode: http.StatusOK, wantBody: "alice"},
		{name: "query token", query: "?token=" + valid, wantCode: http.StatusOK, wantBody: "alice"},
		{name: "expired", header: "Bearer " + expired, wantCode: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantCode: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Fatalf("expected body %q, got %q", tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestOptionalAuthMiddleware_Issuer(t *testing.T) {
	r := newAuthRouter(&config.JWTConfig{Secret: "secret", Issuer: "cyberlearn-auth"})

	// GenerateJWT 不设置 iss，配置了 issuer 时应被拒绝
	tok, err := util.GenerateJWT("alice", "", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing issuer, got %d", w.Code)
	}
}
