// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// identityKey is the context key for storing the authenticated identity.
const identityKey ContextKey = "identity"

// RoleDispatcher may act on any employee's resources.
const RoleDispatcher = "dispatcher"

// TokenValidator is an interface for validating JWT tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (IdentityGetter, error)
}

// IdentityGetter is an interface for extracting the caller from token claims.
type IdentityGetter interface {
	GetEmployeeID() string
	GetRole() string
}

// Identity is the authenticated caller.
type Identity struct {
	EmployeeID string
	Role       string
}

// IsDispatcher reports whether the caller may act for other employees.
func (i Identity) IsDispatcher() bool {
	return i.Role == RoleDispatcher
}

// CanActFor reports whether the caller may act on employeeID's resources.
func (i Identity) CanActFor(employeeID string) bool {
	return i.IsDispatcher() || i.EmployeeID == employeeID
}

// AuthMiddleware creates middleware that validates JWT tokens and adds the caller identity to request context.
func AuthMiddleware(jwtService TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Handle case-insensitive "Bearer" prefix
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			identity := Identity{EmployeeID: claims.GetEmployeeID(), Role: claims.GetRole()}
			if identity.EmployeeID == "" && !identity.IsDispatcher() {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a context carrying identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity extracts the authenticated caller from the request context.
func GetIdentity(r *http.Request) (Identity, error) {
	identity, ok := r.Context().Value(identityKey).(Identity)
	if !ok {
		return Identity{}, fmt.Errorf("identity not found in request context")
	}
	return identity, nil
}

// IdentityKey returns the context key for the identity (for testing purposes).
func IdentityKey() ContextKey {
	return identityKey
}
