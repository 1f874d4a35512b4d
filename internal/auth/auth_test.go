package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/models"
)

const userID = "2d9f0a0e-2c1b-4b8e-9a55-1f1b6c1d9b01"

type fakeUsers map[string]models.User

func (f fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("store: user %s: %w", id, errs.ErrNotFound)
	}
	return &u, nil
}

func TestIssueAndResolve(t *testing.T) {
	p := NewJWTProvider("test-secret", "taskyard", nil)
	token, err := p.Issue(userID, "manager", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	caller, err := p.ResolveCaller(context.Background(), token)
	if err != nil {
		t.Fatalf("ResolveCaller: %v", err)
	}
	if caller.UserID != userID || caller.Role != "manager" {
		t.Errorf("caller = %+v", caller)
	}
}

func TestResolveCaller_StoredRoleWins(t *testing.T) {
	users := fakeUsers{userID: {ID: userID, Role: "admin"}}
	p := NewJWTProvider("test-secret", "taskyard", users)
	token, _ := p.Issue(userID, "user", time.Hour)

	caller, err := p.ResolveCaller(context.Background(), token)
	if err != nil {
		t.Fatalf("ResolveCaller: %v", err)
	}
	if !caller.IsAdmin() {
		t.Errorf("role = %q, want admin from the user record", caller.Role)
	}
}

func TestResolveCaller_Errors(t *testing.T) {
	good := NewJWTProvider("test-secret", "taskyard", fakeUsers{userID: {ID: userID}})
	other := NewJWTProvider("other-secret", "taskyard", nil)
	wrongIssuer := NewJWTProvider("test-secret", "elsewhere", nil)

	sign := func(p *JWTProvider, sub string, ttl time.Duration) string {
		tok, err := p.Issue(sub, "user", ttl)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		return tok
	}
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
		"iss": "taskyard",
	}).SignedString([]byte("test-secret"))
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iss": "taskyard",
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: errs.ErrUnauthenticated},
		{name: "garbage", token: "not.a.jwt", want: errs.ErrInvalidCredential},
		{name: "wrong secret", token: sign(other, userID, time.Hour), want: errs.ErrInvalidCredential},
		{name: "expired", token: sign(good, userID, -time.Minute), want: errs.ErrInvalidCredential},
		{name: "wrong issuer", token: sign(wrongIssuer, userID, time.Hour), want: errs.ErrInvalidCredential},
		{name: "unknown user", token: sign(good, "2d9f0a0e-2c1b-4b8e-9a55-1f1b6c1d9bff", time.Hour), want: errs.ErrInvalidCredential},
		{name: "missing sub", token: noSub, want: errs.ErrInvalidCredential},
		{name: "missing exp", token: noExp, want: errs.ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := good.ResolveCaller(context.Background(), tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("ResolveCaller() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{header: "bearer  abc", want: "abc"},
		{header: "", wantErr: errs.ErrUnauthenticated},
		{header: "Basic dXNlcg==", wantErr: errs.ErrInvalidCredential},
		{header: "Bearer ", wantErr: errs.ErrInvalidCredential},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("BearerToken(%q) err = %v, want %v", tt.header, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("BearerToken(%q) = %q, %v", tt.header, got, err)
		}
	}
}
