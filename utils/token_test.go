package utils

import "testing"

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(42, "client@myjantes.fr", false)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	validated, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if !validated.Valid {
		t.Fatal("token should be valid")
	}
	claim, ok := validated.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("unexpected claims type %T", validated.Claims)
	}
	if claim.ID != 42 {
		t.Fatalf("expected user id 42, got %d", claim.ID)
	}
	if claim.Email != "client@myjantes.fr" {
		t.Fatalf("expected email round trip, got %s", claim.Email)
	}
	if claim.IsAdmin {
		t.Fatal("admin flag should be false")
	}
}

func TestJwtValidate_RejectsGarbage(t *testing.T) {
	if _, err := JwtValidate("not-a-token"); err == nil {
		t.Fatal("garbage token should fail validation")
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(string(hash), "correct horse battery staple"); err != nil {
		t.Fatalf("ComparePassword: %v", err)
	}
	if err := ComparePassword(string(hash), "wrong password"); err == nil {
		t.Fatal("wrong password should not match")
	}
}
