package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPasswordHashing(t *testing.T) {
	password := "secret123"

	// Test Hashing
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == password {
		t.Error("Hash should not match plaintext password")
	}
	if len(hash) == 0 {
		t.Error("Hash should not be empty")
	}

	// Test Comparison (Success)
	if !CheckPasswordHash(password, hash) {
		t.Error("Password should match hash")
	}

	// Test Comparison (Failure)
	if CheckPasswordHash("wrongpassword", hash) {
		t.Error("Wrong password should not match hash")
	}
}

func TestTriggerToken(t *testing.T) {
	secret := "test-secret-key-12345"

	token, err := GenerateTriggerToken("cron-host", time.Hour, secret)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Fatal("Token should not be empty")
	}

	// Test Validation (Success)
	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims["sub"] != "cron-host" {
		t.Errorf("Expected subject cron-host, got %v", claims["sub"])
	}
	if claims["type"] != "trigger" {
		t.Errorf("Expected type trigger, got %v", claims["type"])
	}

	// Test Validation (Failure - Wrong Key)
	if _, err := ValidateToken(token, "wrong-key"); err == nil {
		t.Error("Validation should fail with wrong key")
	}
}

func TestTriggerTokenExpiry(t *testing.T) {
	secret := "test-secret-key-12345"

	forever, err := GenerateTriggerToken("scheduler", 0, secret)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	claims, err := ValidateToken(forever, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if _, ok := claims["exp"]; ok {
		t.Error("Token without ttl should not expire")
	}

	claims = jwt.MapClaims{"sub": "scheduler", "type": "trigger", "exp": time.Now().Add(-time.Minute).Unix()}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	if _, err := ValidateToken(expired, secret); err == nil {
		t.Error("Expired token should not validate")
	}
}
