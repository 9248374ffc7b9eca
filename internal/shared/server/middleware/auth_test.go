package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"factcheck-backend/internal/shared/auth"
)

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth("dev"))
	router.OPTIONS("/api/v1/analyses", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyses", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthGuestAndBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")
	router := gin.New()
	router.Use(Auth("dev"))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserIDFromContext(c), "email": UserEmailFromContext(c), "guest": c.GetBool("isGuest")})
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"user":"guest:g1"`) {
		t.Fatalf("guest identity not set: %d %s", resp.Code, resp.Body.String())
	}

	token, err := auth.SignJWT(auth.Claims{Email: "a@example.com", RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"user":"user-1"`) || !strings.Contains(resp.Body.String(), `"guest":false`) {
		t.Fatalf("bearer identity not set: %d %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.Code)
	}
}

func TestAuthGuestIDRules(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name  string
		env   string
		guest string
		want  int
	}{
		{name: "dev accepts short id", env: "dev", guest: "g1", want: http.StatusOK},
		{name: "dev rejects spaces", env: "dev", guest: "g 1", want: http.StatusUnauthorized},
		{name: "dev rejects long id", env: "dev", guest: strings.Repeat("a", 65), want: http.StatusUnauthorized},
		{name: "prod requires uuid", env: "prod", guest: "g1", want: http.StatusUnauthorized},
		{name: "prod accepts uuid", env: "prod", guest: "6f1c2f0e-6d1b-4c53-9d8e-0b7f7c0e5a11", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(Auth(tc.env))
			router.GET("/whoami", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("X-Guest-Id", tc.guest)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("guest %q in %s: got %d, want %d", tc.guest, tc.env, resp.Code, tc.want)
			}
		})
	}
}
