package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()
	canteenID := uuid.New()

	token, err := GenerateToken(secret, userID, canteenID, "STAFF")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("user id = %s, want %s", claims.UserID, userID)
	}
	if claims.CanteenID != canteenID {
		t.Errorf("canteen id = %s, want %s", claims.CanteenID, canteenID)
	}
	if claims.Role != "STAFF" {
		t.Errorf("role = %s, want STAFF", claims.Role)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("secret-a", uuid.New(), uuid.Nil, "CUSTOMER")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ValidateToken("secret-b", token); err == nil {
		t.Fatal("expected validation error with wrong secret")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := ValidateToken("secret", "not.a.token"); err == nil {
		t.Fatal("expected validation error for garbage token")
	}
}
