package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin = "admin"
	tokenTTL  = 7 * 24 * time.Hour
)

// AuthService authenticates the chama administrator and issues JWTs for the
// admin API. The single admin account comes from configuration.
type AuthService struct {
	jwtSecret    string
	adminEmail   string
	passwordHash []byte
	now          func() time.Time
}

// NewAuthService hashes the configured admin password once at startup.
func NewAuthService(jwtSecret, adminEmail, adminPassword string) (*AuthService, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	log.Printf("✅ Admin account configured (%s)", adminEmail)
	return &AuthService{
		jwtSecret:    jwtSecret,
		adminEmail:   strings.ToLower(adminEmail),
		passwordHash: hash,
		now:          time.Now,
	}, nil
}

// Login checks the admin credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(email)), []byte(s.adminEmail)) == 1
	// Compare the hash even for an unknown email so timing does not leak it.
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !emailOK || passErr != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	token, err := s.IssueToken(s.adminEmail, RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{Token: token, Email: s.adminEmail}, nil
}

// IssueToken signs a token for subject with role.
func (s *AuthService) IssueToken(subject, role string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  now.Add(tokenTTL).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", domain.ErrInternal("failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	return &domain.JWTClaims{
		Sub:  getClaimString(claims, "sub"),
		Role: getClaimString(claims, "role"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
