package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUserTokenRoundTrip(t *testing.T) {
	token, err := GenerateUserToken("sess-1", "alice", true)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	claims, err := ValidateUserToken(token)
	if err != nil {
		t.Fatalf("validating token: %v", err)
	}
	if claims.SessionID != "sess-1" {
		t.Errorf("unexpected session ID %q", claims.SessionID)
	}
	if claims.Username != "alice" {
		t.Errorf("unexpected username %q", claims.Username)
	}
	if !claims.IsAdmin {
		t.Error("admin flag should survive the round trip")
	}
	if claims.Subject != "alice" {
		t.Errorf("subject should mirror the username, got %q", claims.Subject)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	token, err := GenerateUserToken("sess-1", "alice", false)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d segments", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := ValidateUserToken(tampered); err == nil {
		t.Error("tampered token must be rejected")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := ValidateUserToken("not-a-token"); err == nil {
		t.Error("malformed token must be rejected")
	}
}

func TestExtractTokenFromRequest(t *testing.T) {
	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Authorization", "Bearer tok-1")
		token, err := ExtractTokenFromRequest(r)
		if err != nil || token != "tok-1" {
			t.Errorf("expected tok-1, got %q (%v)", token, err)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Authorization", "tok-1")
		if _, err := ExtractTokenFromRequest(r); err == nil {
			t.Error("a non-Bearer header must be rejected")
		}
	})

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.AddCookie(&http.Cookie{Name: "session_token", Value: "tok-2"})
		token, err := ExtractTokenFromRequest(r)
		if err != nil || token != "tok-2" {
			t.Errorf("expected tok-2, got %q (%v)", token, err)
		}
	})

	t.Run("query parameter", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws?token=tok-3", nil)
		token, err := ExtractTokenFromRequest(r)
		if err != nil || token != "tok-3" {
			t.Errorf("expected tok-3, got %q (%v)", token, err)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		if _, err := ExtractTokenFromRequest(r); err == nil {
			t.Error("a bare request must yield an error")
		}
	})
}
