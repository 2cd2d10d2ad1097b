package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonathan/bin-crew/internal/config"
	"github.com/jonathan/bin-crew/internal/server/middleware"
)

// tokenIssuer is stamped into every token and required on the way back in.
const tokenIssuer = "bincrew"

var (
	errEmptyToken  = errors.New("token string is empty")
	errUnknownRole = errors.New("unknown role")
)

// Claims identify a field employee or a dispatcher.
type Claims struct {
	EmployeeID string `json:"employee_id,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GetEmployeeID implements middleware.IdentityGetter.
func (c *Claims) GetEmployeeID() string { return c.EmployeeID }

// GetRole implements middleware.IdentityGetter.
func (c *Claims) GetRole() string { return c.Role }

// check rejects claims that are well signed but do not describe a caller.
func (c *Claims) check() error {
	switch c.Role {
	case middleware.RoleDispatcher:
		return nil
	case "":
		if c.EmployeeID == "" {
			return errors.New("employee token carries no employee ID")
		}
		if c.Subject != "" && c.Subject != c.EmployeeID {
			return fmt.Errorf("subject %q does not match employee %q", c.Subject, c.EmployeeID)
		}
		return nil
	default:
		return fmt.Errorf("%w %q", errUnknownRole, c.Role)
	}
}

// JWTService signs and verifies HS256 employee tokens.
type JWTService struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewJWTService creates a JWT service with the given configuration.
func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{config: cfg, now: time.Now}
}

// AsTokenValidator adapts the service for the auth middleware.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return tokenValidatorFunc(func(token string) (middleware.IdentityGetter, error) {
		claims, err := s.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

type tokenValidatorFunc func(string) (middleware.IdentityGetter, error)

func (f tokenValidatorFunc) ValidateToken(token string) (middleware.IdentityGetter, error) {
	return f(token)
}

// GenerateToken issues a token for employeeID with the given role. Dispatcher
// tokens may omit the employee ID.
func (s *JWTService) GenerateToken(employeeID, role string) (string, error) {
	now := s.now()
	claims := &Claims{
		EmployeeID: employeeID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   employeeID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiration())),
		},
	}
	if err := claims.check(); err != nil {
		return "", fmt.Errorf("cannot issue token: %w", err)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer and lifetime and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errEmptyToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return []byte(s.config.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, describeTokenError(err)
	}
	if err := claims.check(); err != nil {
		return nil, fmt.Errorf("invalid token claims: %w", err)
	}
	return claims, nil
}

func describeTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("invalid token signature: %w", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("token expired: %w", err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("token not yet valid: %w", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("token from another issuer: %w", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("malformed token: %w", err)
	}
	return fmt.Errorf("failed to parse token: %w", err)
}
