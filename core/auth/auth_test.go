package auth

import (
	"errors"
	"testing"
	"time"

	"TandemFM/model"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPasswordHash("s3cret", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	user := &model.User{ID: 42, Username: "mika"}

	token, err := GenerateToken("secret", user, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "mika" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseTokenRejectsBadSecret(t *testing.T) {
	user := &model.User{ID: 1, Username: "a"}
	token, err := GenerateToken("secret", user, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	_, err = ParseToken("other", token)
	if !errors.Is(err, model.ErrAuthRequired) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	user := &model.User{ID: 1, Username: "a"}
	token, err := GenerateToken("secret", user, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := ParseToken("secret", token); !errors.Is(err, model.ErrAuthRequired) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
}
