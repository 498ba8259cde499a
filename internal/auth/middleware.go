package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Roles known to the report API. Deleting runs needs RoleAdmin.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrTokenExpired = errors.New("token expired")
)

type Claims struct {
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Groups []string `json:"groups"`
	jwt.RegisteredClaims
}

type contextKey string

const UserContextKey contextKey = "user"

// JWKSManager handles JWKS fetching and caching
type JWKSManager struct {
	jwks       keyfunc.Keyfunc
	jwksURL    string
	mu         sync.RWMutex
	lastUpdate time.Time
}

// NewJWKSManager creates a manager for the issuer's signing keys. The JWKS
// URL follows the Keycloak layout unless OIDC_JWKS_URL overrides it.
func NewJWKSManager(issuerURL string) *JWKSManager {
	jwksURL := os.Getenv("OIDC_JWKS_URL")
	if jwksURL == "" {
		jwksURL = strings.TrimSuffix(issuerURL, "/") + "/protocol/openid-connect/certs"
	}
	return &JWKSManager{jwksURL: jwksURL}
}

// refresh fetches the JWKS from the OIDC provider
func (m *JWKSManager) refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, err := keyfunc.NewDefaultCtx(ctx, []string{m.jwksURL})
	if err != nil {
		return fmt.Errorf("failed to create keyfunc: %w", err)
	}

	m.jwks = k
	m.lastUpdate = time.Now()
	return nil
}

// getKeyfunc returns the JWT keyfunc for token verification
func (m *JWKSManager) getKeyfunc() jwt.Keyfunc {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.jwks == nil {
		return nil
	}
	return m.jwks.Keyfunc
}

// Authenticator validates bearer tokens on the report API
type Authenticator struct {
	skipAuth bool
	jwks     *JWKSManager // nil: tokens are parsed unverified
	logger   zerolog.Logger
}

// NewAuthenticator configures auth from SKIP_AUTH and OIDC_ISSUER. With an
// issuer the JWKS is fetched once up front; the keyfunc keeps it fresh.
func NewAuthenticator(ctx context.Context, logger zerolog.Logger) (*Authenticator, error) {
	a := &Authenticator{
		skipAuth: os.Getenv("SKIP_AUTH") == "true",
		logger:   logger.With().Str("component", "auth").Logger(),
	}

	switch issuer := os.Getenv("OIDC_ISSUER"); {
	case a.skipAuth:
		a.logger.Warn().Msg("SKIP_AUTH enabled - bypassing authentication")
	case issuer != "":
		a.jwks = NewJWKSManager(issuer)
		if err := a.jwks.refresh(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize JWKS: %w", err)
		}
		a.logger.Info().Str("jwks_url", a.jwks.jwksURL).Msg("JWKS loaded")
	default:
		a.logger.Warn().Msg("OIDC_ISSUER not set - JWT signatures are not verified")
	}
	return a, nil
}

// Middleware validates JWT tokens from the OIDC provider
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if a.skipAuth {
			ctx := context.WithValue(r.Context(), UserContextKey, &Claims{
				Email:  "dev@cdrstats.local",
				Name:   "Dev User",
				Role:   RoleAdmin,
				Groups: []string{"developers"},
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		claims, err := a.validateToken(extractToken(r))
		if err != nil {
			a.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("token rejected")
			http.Error(w, fmt.Sprintf("Unauthorized: %v", err), http.StatusUnauthorized)
			return
		}

		a.logger.Debug().Str("email", claims.Email).Str("role", claims.Role).Msg("user authenticated")

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated users without role
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok || !HasRole(claims, role) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken gets the token from Authorization header or query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}

	// Query parameter for download links opened in a browser
	return r.URL.Query().Get("token")
}

// validateToken parses the token, verifying the signature when a JWKS is configured
func (a *Authenticator) validateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	var (
		token *jwt.Token
		err   error
	)
	if a.jwks != nil {
		keyfunc := a.jwks.getKeyfunc()
		if keyfunc == nil {
			return nil, fmt.Errorf("JWKS not available")
		}
		token, err = jwt.Parse(tokenString, keyfunc, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}))
		if err != nil {
			return nil, fmt.Errorf("token verification failed: %w", err)
		}
		if !token.Valid {
			return nil, fmt.Errorf("invalid token")
		}
	} else {
		token, _, err = jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
		if err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	claims := &Claims{
		Groups: extractGroupsFromMapClaims(mapClaims),
		Role:   extractRoleFromMapClaims(mapClaims),
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	} else if preferredUsername, ok := mapClaims["preferred_username"].(string); ok {
		claims.Name = preferredUsername
	}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}

	// Verified tokens had exp checked by the parser
	if exp, ok := mapClaims["exp"].(float64); ok {
		expTime := time.Unix(int64(exp), 0)
		claims.ExpiresAt = jwt.NewNumericDate(expTime)
		if a.jwks == nil && expTime.Before(time.Now()) {
			return nil, ErrTokenExpired
		}
	}

	return claims, nil
}

// extractRoleFromMapClaims reads the role from Keycloak realm roles or Cognito groups
func extractRoleFromMapClaims(mapClaims jwt.MapClaims) string {
	if realmAccess, ok := mapClaims["realm_access"].(map[string]interface{}); ok {
		if roles, ok := realmAccess["roles"].([]interface{}); ok {
			for _, role := range roles {
				if roleStr, ok := role.(string); ok && roleStr == RoleAdmin {
					return RoleAdmin
				}
			}
		}
	}

	if cognitoGroups, ok := mapClaims["cognito:groups"].([]interface{}); ok {
		for _, group := range cognitoGroups {
			if groupStr, ok := group.(string); ok && strings.Contains(groupStr, RoleAdmin) {
				return RoleAdmin
			}
		}
	}

	return RoleViewer
}

// extractGroupsFromMapClaims extracts groups from token claims
func extractGroupsFromMapClaims(mapClaims jwt.MapClaims) []string {
	var groups []string
	for _, key := range []string{"groups", "cognito:groups"} {
		if list, ok := mapClaims[key].([]interface{}); ok {
			for _, group := range list {
				if groupStr, ok := group.(string); ok {
					groups = append(groups, groupStr)
				}
			}
		}
	}
	return groups
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}

// HasRole checks if user has specific role
func HasRole(claims *Claims, role string) bool {
	return claims.Role == role
}
