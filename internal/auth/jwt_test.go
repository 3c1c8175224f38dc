package auth

import (
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	mgr := NewJWTManager("segredo-de-teste-com-32-caracteres!", time.Minute)

	signed, jti, err := mgr.GenerateAccessToken("user-1", "portal", []string{"CLIENT"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if jti == "" {
		t.Fatal("jti vazio")
	}

	claims, err := mgr.ParseAndValidate(signed)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject inesperado: %s", claims.Subject)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "portal" {
		t.Fatalf("audience inesperada: %v", claims.Audience)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "CLIENT" {
		t.Fatalf("roles inesperadas: %v", claims.Roles)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	mgr := NewJWTManager("segredo-de-teste-com-32-caracteres!", time.Minute)
	other := NewJWTManager("outro-segredo-tambem-com-32-chars!!", time.Minute)

	signed, _, err := mgr.GenerateAccessToken("user-1", "portal", nil)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := other.ParseAndValidate(signed); err == nil {
		t.Fatal("token assinado com outro segredo deveria ser recusado")
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	mgr := NewJWTManager("segredo-de-teste-com-32-caracteres!", -time.Minute)

	signed, _, err := mgr.GenerateAccessToken("user-1", "portal", nil)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := mgr.ParseAndValidate(signed); err == nil {
		t.Fatal("token vencido deveria ser recusado")
	}
}
