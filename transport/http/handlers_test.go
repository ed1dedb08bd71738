package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/internal/clock"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/service"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopPublisher struct{}

func (nopPublisher) PublishLogin(context.Context, string, string) error  { return nil }
func (nopPublisher) PublishLogout(context.Context, string, string) error { return nil }

type testServer struct {
	router *gin.Engine
	clock  *clock.FakeClock
}

func newTestServer(t *testing.T, burst int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	clk := clock.Fake(time.Now().Truncate(time.Second))
	logger, _ := test.NewNullLogger()

	challenger := service.NewChallenger(store.NewMemoryChallengeStore(clk), "Barong",
		service.WithClock(clk), service.WithLogger(logger))
	authService := service.NewAuthService(
		challenger,
		tokenizer.NewJWTTokenizer(key, clk),
		store.NewMemoryStore(clk),
		nopPublisher{},
		service.AuthConfig{Clock: clk, Logger: logger},
	)
	limiter := NewRateLimiter(1, burst, time.Minute, clk)

	return &testServer{
		router: SetupRouter(challenger, authService, limiter, logger),
		clock:  clk,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, bearer string) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func newKeyPair(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestLoginFlow(t *testing.T) {
	s := newTestServer(t, 100)
	key, address := newKeyPair(t)

	code, challenge := s.do(t, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	require.Equal(t, http.StatusOK, code)
	message := challenge["message"].(string)
	assert.Contains(t, message, strings.ToLower(address))
	assert.Contains(t, message, challenge["nonce"].(string))
	assert.NotEmpty(t, challenge["expires_at"])

	code, health := s.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), health["active_challenges"])

	sig, err := eth.SignMessage(message, key)
	require.NoError(t, err)

	code, tokens := s.do(t, http.MethodPost, "/auth/login", gin.H{
		"address":   strings.ToLower(address),
		"signature": sig,
		"message":   message,
	}, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Bearer", tokens["token_type"])
	assert.Equal(t, float64(300), tokens["expires_in"])
	access := tokens["access_token"].(string)
	refresh := tokens["refresh_token"].(string)

	code, me := s.do(t, http.MethodGet, "/api/me", nil, access)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, strings.ToLower(address), me["address"])

	code, _ = s.do(t, http.MethodGet, "/api/authorize", nil, access)
	assert.Equal(t, http.StatusOK, code)

	// Same signed message again
	code, resp := s.do(t, http.MethodPost, "/auth/login", gin.H{
		"address":   address,
		"signature": sig,
		"message":   message,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid signature", resp["error"])

	code, rotated := s.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/auth/logout", gin.H{"refresh_token": rotated["refresh_token"]}, "")
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/me", nil, rotated["access_token"].(string))
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogin_FailuresLookAlike(t *testing.T) {
	s := newTestServer(t, 100)
	key, address := newKeyPair(t)
	otherKey, _ := newKeyPair(t)

	// Never requested
	sig, err := eth.SignMessage("hello", key)
	require.NoError(t, err)
	code, neverRequested := s.do(t, http.MethodPost, "/auth/login", gin.H{"address": address, "signature": sig, "message": "hello"}, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	_, challenge := s.do(t, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	message := challenge["message"].(string)

	// Wrong signer
	sig, err = eth.SignMessage(message, otherKey)
	require.NoError(t, err)
	code, wrongSigner := s.do(t, http.MethodPost, "/auth/login", gin.H{"address": address, "signature": sig, "message": message}, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	// Expired
	sig, err = eth.SignMessage(message, key)
	require.NoError(t, err)
	s.clock.Advance(6 * time.Minute)
	code, expired := s.do(t, http.MethodPost, "/auth/login", gin.H{"address": address, "signature": sig, "message": message}, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	assert.Equal(t, neverRequested, wrongSigner)
	assert.Equal(t, wrongSigner, expired)
}

func TestChallenge_InvalidRequests(t *testing.T) {
	s := newTestServer(t, 100)

	code, _ := s.do(t, http.MethodPost, "/auth/challenge", gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := s.do(t, http.MethodPost, "/auth/challenge", gin.H{"address": "0x1234"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid address", resp["error"])
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	s := newTestServer(t, 100)

	code, _ := s.do(t, http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp := s.do(t, http.MethodGet, "/api/me", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid token", resp["error"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	_, address := newKeyPair(t)

	for i := 0; i < 2; i++ {
		code, _ := s.do(t, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
		require.Equal(t, http.StatusOK, code)
	}

	code, resp := s.do(t, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many requests", resp["error"])

	// Health is not throttled
	code, _ = s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)

	s.clock.Advance(2 * time.Second)
	code, _ = s.do(t, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRateLimiter_SweepExpired(t *testing.T) {
	clk := clock.Fake(time.Now())
	rl := NewRateLimiter(1, 1, time.Minute, clk)

	assert.True(t, rl.allow("a"))
	clk.Advance(30 * time.Second)
	assert.True(t, rl.allow("b"))
	clk.Advance(45 * time.Second)

	removed, err := rl.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "walletauth_challenge_issued_total")
}
