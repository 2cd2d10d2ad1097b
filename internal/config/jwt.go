package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	minJWTSecretLength = 16
	// maxJWTExpiration bounds how long a lost phone keeps a working token.
	maxJWTExpiration = 30 * 24
)

// JWTConfig signs and verifies employee tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig builds a token configuration. Zero expirationHours means the
// default lifetime; every problem with the inputs is reported together.
func NewJWTConfig(secret string, expirationHours int) (*JWTConfig, error) {
	if expirationHours == 0 {
		expirationHours = DefaultJWTExpiration
	}

	var errs []error
	switch {
	case secret == "":
		errs = append(errs, errors.New("JWT_SECRET cannot be empty"))
	case len(secret) < minJWTSecretLength:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}
	if expirationHours < 1 || expirationHours > maxJWTExpiration {
		errs = append(errs, fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour and at most %d, got: %d",
			maxJWTExpiration, expirationHours))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &JWTConfig{Secret: secret, ExpirationHours: expirationHours}, nil
}

// JWT returns the token configuration, or nil when no secret is set and
// authentication is disabled.
func (c *Config) JWT() (*JWTConfig, error) {
	if c.JWTSecret == "" {
		return nil, nil
	}
	return NewJWTConfig(c.JWTSecret, c.JWTExpirationHours)
}

// Expiration returns the token lifetime.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

// String hides the secret so the config can be logged.
func (c *JWTConfig) String() string {
	return fmt.Sprintf("jwt(secret=%d chars, expiration=%s)", len(c.Secret), c.Expiration())
}
