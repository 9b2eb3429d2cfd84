package jwtutil

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, "discord:42", "bot")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "discord:42" || claims.ClientID != "bot" || claims.Subject != "discord:42" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejects(t *testing.T) {
	good, err := GenerateToken("secret", time.Hour, "u1", "bot")
	if err != nil {
		t.Fatal(err)
	}
	expired, err := GenerateToken("secret", -time.Minute, "u1", "bot")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "secret", expired},
		{"garbage", "secret", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.secret, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("got %v, want ErrInvalidToken", err)
			}
		})
	}

	if _, err := GenerateToken("", time.Hour, "u1", "bot"); err == nil {
		t.Fatal("empty secret should fail")
	}
}
