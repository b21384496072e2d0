package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// JWTConfig holds JWT middleware configuration.
type JWTConfig struct {
	Secret    string
	Issuer    string
	ExpiresIn time.Duration
}

// JWTMiddleware validates the bearer token issued by the identity provider
// and stores the caller as a *domain.UserContext in the request locals.
func JWTMiddleware(cfg JWTConfig) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := bearerToken(c.Get("Authorization"))
		// EventSource cannot set headers.
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization",
			})
		}

		uc, err := ValidateToken(token, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals("user", uc)
		return c.Next()
	}
}

// AuthenticateBearer validates an Authorization header value for transports
// served outside Fiber.
func AuthenticateBearer(header string, cfg JWTConfig) (*domain.UserContext, error) {
	token := bearerToken(header)
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", port.ErrUnauthorized)
	}
	return ValidateToken(token, cfg)
}

// ValidateToken checks a raw token and returns the caller it names.
func ValidateToken(token string, cfg JWTConfig) (*domain.UserContext, error) {
	claims, err := validateJWT(token, cfg.Secret, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	return &domain.UserContext{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetUserContext extracts the UserContext from Fiber locals.
func GetUserContext(c fiber.Ctx) *domain.UserContext {
	u, ok := c.Locals("user").(*domain.UserContext)
	if !ok {
		return nil
	}
	return u
}

// Claims is the token payload: the registered claims plus the caller profile.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// GenerateJWT signs an HS256 token for user. Tokens are normally issued by
// the identity provider; this serves the CLI and tests.
func GenerateJWT(user *domain.UserContext, cfg JWTConfig) (string, error) {
	if user == nil || user.UserID == "" {
		return "", fmt.Errorf("generate token: subject is required: %w", port.ErrInvalidInput)
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.ExpiresIn)),
		},
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// validateJWT checks signature, issuer and expiry. Failures wrap
// port.ErrTokenExpired or port.ErrTokenInvalid.
func validateJWT(tokenStr, secret, expectedIssuer string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(expectedIssuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, port.ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", port.ErrTokenInvalid, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: missing subject", port.ErrTokenInvalid)
	}
	return claims, nil
}
