package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/clock/system"
)

var issuedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, clock *system.Fixed) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	svc, err := NewService(Config{
		Enabled:  true,
		Secret:   "test-secret",
		TokenTTL: 30 * time.Minute,
		Users:    map[string]string{"Analyst": string(hash)},
	}, clock)
	require.NoError(t, err)
	return svc
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	t.Parallel()

	svc := newService(t, system.NewFixed(issuedAt))
	tok, err := svc.Login("analyst", "hunter2")
	require.NoError(t, err)
	require.Equal(t, issuedAt.Add(30*time.Minute), tok.ExpiresAt)

	sub, err := svc.Verify(tok.Token)
	require.NoError(t, err)
	require.Equal(t, "analyst", sub)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	svc := newService(t, system.NewFixed(issuedAt))
	_, err := svc.Login("analyst", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("nobody", "hunter2")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsExpiredAndForged(t *testing.T) {
	t.Parallel()

	clock := system.NewFixed(issuedAt)
	svc := newService(t, clock)
	tok, err := svc.Issue("analyst")
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	_, err = svc.Verify(tok.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewService(Config{Enabled: true, Secret: "other"}, system.NewFixed(issuedAt))
	require.NoError(t, err)
	forged, err := other.Issue("analyst")
	require.NoError(t, err)
	_, err = newService(t, system.NewFixed(issuedAt)).Verify(forged.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "analyst"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewServiceRequiresSecretWhenEnabled(t *testing.T) {
	t.Parallel()

	_, err := NewService(Config{Enabled: true}, system.New())
	require.Error(t, err)
	svc, err := NewService(Config{}, system.New())
	require.NoError(t, err)
	require.False(t, svc.Enabled())
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc := newService(t, system.NewFixed(issuedAt))
	tok, err := svc.Issue("analyst")
	require.NoError(t, err)

	var seen string
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{name: "valid", header: "Bearer " + tok.Token, code: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + tok.Token, code: http.StatusNoContent},
		{name: "missing", header: "", code: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", code: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", code: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/v1/crawls", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, tt.code, rec.Code, tt.name)
		if tt.code == http.StatusUnauthorized {
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.NotEmpty(t, body["error"])
		}
	}
	require.Equal(t, "analyst", seen)
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	t.Parallel()

	svc, err := NewService(Config{}, system.New())
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHashPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
	_, err = HashPassword("")
	require.Error(t, err)
}
