package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	token, err := iss.IssueAccessToken(42)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	id, err := iss.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if id != 42 {
		t.Errorf("user id = %d, want 42", id)
	}
}

func TestParseRejects(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	access, _ := iss.IssueAccessToken(1)
	link, _ := iss.IssueLinkToken(1)
	foreign, _ := NewIssuer("other", time.Hour).IssueAccessToken(1)

	expiredIss := NewIssuer("secret", time.Hour)
	expiredIss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIss.IssueAccessToken(1)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "purpose": PurposeAccess}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
		parse func(string) (int64, error)
	}{
		{"wrong purpose", link, iss.ParseAccessToken},
		{"access used as link", access, iss.ParseLinkToken},
		{"wrong secret", foreign, iss.ParseAccessToken},
		{"expired", expired, iss.ParseAccessToken},
		{"alg none", none, iss.ParseAccessToken},
		{"garbage", "not-a-token", iss.ParseAccessToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
