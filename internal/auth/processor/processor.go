package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch-server/internal/observability"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrIncorrectPassword indicates the operator password did not match
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrInvalidToken indicates the JWT failed validation
	ErrInvalidToken = errors.New("invalid token")
)

const (
	tokenIssuer   = "dispatch-server"
	tokenAudience = "dispatch-server"
	tokenSubject  = "operator"
	tokenLifetime = 24 * time.Hour
)

// AuthProcessor authenticates the dispatch operator. The deployment is single
// tenant: one shared operator credential, verified against a bcrypt hash from
// configuration.
type AuthProcessor struct {
	jwtSecret    []byte
	passwordHash []byte
	logger       *observability.Logger
}

// New creates a new AuthProcessor
func New(jwtSecret, passwordHash string, logger *observability.Logger) *AuthProcessor {
	return &AuthProcessor{
		jwtSecret:    []byte(jwtSecret),
		passwordHash: []byte(passwordHash),
		logger:       logger,
	}
}

// Login verifies the operator password and issues a session token
func (p *AuthProcessor) Login(ctx context.Context, password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(p.passwordHash, []byte(password)); err != nil {
		p.logger.Warn(ctx, "operator login rejected")
		return "", ErrIncorrectPassword
	}
	return p.generateToken()
}

func (p *AuthProcessor) generateToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": tokenSubject,
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"iat": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a session token
func (p *AuthProcessor) ValidateToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.jwtSecret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
