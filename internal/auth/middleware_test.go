package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newAuthenticator(t *testing.T, env map[string]string) *Authenticator {
	t.Helper()
	os.Clearenv()
	for k, v := range env {
		os.Setenv(k, v)
	}
	a, err := NewAuthenticator(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetUserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Write([]byte(claims.Email + "|" + claims.Role))
}

func TestMiddleware(t *testing.T) {
	a := newAuthenticator(t, nil)
	handler := a.Middleware(http.HandlerFunc(echoUser))

	tests := []struct {
		name       string
		path       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "health is public",
			path:       "/health",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "missing token",
			path:       "/api/report",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed token",
			path:       "/api/report",
			header:     "Bearer not-a-jwt",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			path: "/api/report",
			header: "Bearer " + signed(t, jwt.MapClaims{
				"email": "ops@example.com",
				"exp":   float64(time.Now().Add(-time.Hour).Unix()),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "viewer via header",
			path: "/api/report",
			header: "Bearer " + signed(t, jwt.MapClaims{
				"email": "ops@example.com",
				"exp":   float64(time.Now().Add(time.Hour).Unix()),
			}),
			wantStatus: http.StatusOK,
			wantBody:   "ops@example.com|viewer",
		},
		{
			name: "admin via query parameter",
			path: "/api/report",
			query: signed(t, jwt.MapClaims{
				"email":        "root@example.com",
				"realm_access": map[string]interface{}{"roles": []interface{}{"offline_access", "admin"}},
			}),
			wantStatus: http.StatusOK,
			wantBody:   "root@example.com|admin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.path
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestMiddlewareSkipAuth(t *testing.T) {
	a := newAuthenticator(t, map[string]string{"SKIP_AUTH": "true"})
	defer os.Clearenv()

	rec := httptest.NewRecorder()
	a.Middleware(http.HandlerFunc(echoUser)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "dev@cdrstats.local|admin" {
		t.Errorf("expected dev admin user, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{name: "no user", want: http.StatusForbidden},
		{name: "viewer", claims: &Claims{Role: RoleViewer}, want: http.StatusForbidden},
		{name: "admin", claims: &Claims{Role: RoleAdmin}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/runs/x", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), UserContextKey, tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestExtractRoleFromCognitoGroups(t *testing.T) {
	role := extractRoleFromMapClaims(jwt.MapClaims{
		"cognito:groups": []interface{}{"cdrstats-admins"},
	})
	if role != RoleAdmin {
		t.Errorf("expected admin, got %s", role)
	}

	groups := extractGroupsFromMapClaims(jwt.MapClaims{
		"groups":         []interface{}{"a"},
		"cognito:groups": []interface{}{"b"},
	})
	if len(groups) != 2 {
		t.Errorf("expected both group claims, got %v", groups)
	}
}
