package app

import (
	"crypto/subtle"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"studybuddy/internal/pkg/jwtutil"
)

const maxUserIDLength = 64

// AuthService exchanges dispatcher client credentials for a user token.
// Users are identified by their chat platform id; there is no local account.
type AuthService struct {
	clientID         string
	clientSecretHash string
	jwtSecret        string
	jwtExpiration    time.Duration
}

type TokenInput struct {
	ClientID     string
	ClientSecret string
	UserID       string
}

type TokenResult struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewAuthService(clientID, clientSecretHash, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		clientID:         clientID,
		clientSecretHash: clientSecretHash,
		jwtSecret:        jwtSecret,
		jwtExpiration:    jwtExpiration,
	}
}

func (s *AuthService) IssueToken(input TokenInput) (*TokenResult, error) {
	clientID := strings.TrimSpace(input.ClientID)
	userID := strings.TrimSpace(input.UserID)
	if clientID == "" || input.ClientSecret == "" || userID == "" || len(userID) > maxUserIDLength {
		return nil, ErrInvalidInput
	}
	if s.clientSecretHash == "" {
		return nil, ErrInvalidCredential
	}
	if subtle.ConstantTimeCompare([]byte(clientID), []byte(s.clientID)) != 1 {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.clientSecretHash), []byte(input.ClientSecret)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, userID, clientID)
	if err != nil {
		return nil, err
	}
	return &TokenResult{Token: token, UserID: userID, ExpiresAt: time.Now().Add(s.jwtExpiration)}, nil
}

// HashSecret produces the bcrypt hash stored in auth.client_secret_hash.
func HashSecret(secret string) (string, error) {
	if len(secret) < 8 {
		return "", ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
