package graph

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"production-report/internal/config"
	"production-report/internal/model"
)

// testLogger creates a disabled logger for testing
func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// writeJSON writes a JSON response with proper headers
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type fakeGraph struct {
	tokenCalls atomic.Int32
	sendCalls  atomic.Int32
	tokenCode  int
	sendCode   int

	mu       sync.Mutex
	lastForm string
	lastAuth string
	lastPath string
	lastBody SendMailRequest
}

func (f *fakeGraph) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/oauth2/v2.0/token"):
			f.tokenCalls.Add(1)
			body, _ := io.ReadAll(r.Body)
			f.lastForm = string(body)
			if f.tokenCode != 0 && f.tokenCode != http.StatusOK {
				writeJSON(w, f.tokenCode, map[string]string{"error": "invalid_client", "error_description": "bad secret"})
				return
			}
			writeJSON(w, http.StatusOK, TokenResponse{TokenType: "Bearer", ExpiresIn: 3600, AccessToken: "token-1"})
		case strings.HasSuffix(r.URL.Path, "/sendMail"):
			f.sendCalls.Add(1)
			f.lastAuth = r.Header.Get("Authorization")
			f.lastPath = r.URL.Path
			if err := json.NewDecoder(r.Body).Decode(&f.lastBody); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if f.sendCode != 0 && f.sendCode != http.StatusAccepted {
				writeJSON(w, f.sendCode, map[string]any{"error": map[string]string{"code": "ErrorSendAsDenied", "message": "not allowed"}})
				return
			}
			w.WriteHeader(http.StatusAccepted)
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(&config.GraphConfig{
		TenantID:      "tenant-1",
		ClientID:      "client-1",
		ClientSecret:  "secret-1",
		Sender:        "report@example.com",
		LoginEndpoint: srv.URL,
		Endpoint:      srv.URL,
		Timeout:       5 * time.Second,
	}, &config.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}, testLogger())
}

func testMessage() *model.Message {
	return &model.Message{
		Subject:  "Production Status - 每日開機狀態 2026-10-18",
		HTMLBody: "<html><body><img src=\"cid:chart\"></body></html>",
		To:       "a@example.com;b@example.com",
		Attachments: []model.Attachment{
			{Name: "chart.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}, ContentID: "chart"},
			{Name: "report.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Data: []byte("PK")},
		},
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(&config.GraphConfig{}, nil, testLogger())
	if c.timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", c.timeout)
	}
	if c.retry.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", c.retry.MaxRetries)
	}
	if c.login.BaseURL != defaultLoginEndpoint || c.api.BaseURL != defaultEndpoint {
		t.Errorf("unexpected endpoints %s %s", c.login.BaseURL, c.api.BaseURL)
	}
	if c.Name() != "graph" {
		t.Errorf("unexpected name %s", c.Name())
	}
}

func TestClient_Send(t *testing.T) {
	fake := &fakeGraph{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newTestClient(srv)
	require.NoError(t, c.Send(t.Context(), testMessage()))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.lastForm, "grant_type=client_credentials")
	assert.Contains(t, fake.lastForm, "client_id=client-1")
	assert.Equal(t, "Bearer token-1", fake.lastAuth)
	assert.Equal(t, "/v1.0/users/report@example.com/sendMail", fake.lastPath)

	msg := fake.lastBody.Message
	assert.Equal(t, "Production Status - 每日開機狀態 2026-10-18", msg.Subject)
	assert.Equal(t, "HTML", msg.Body.ContentType)
	require.Len(t, msg.ToRecipients, 2)
	assert.Equal(t, "b@example.com", msg.ToRecipients[1].EmailAddress.Address)

	require.Len(t, msg.Attachments, 2)
	assert.True(t, msg.Attachments[0].IsInline)
	assert.Equal(t, "chart", msg.Attachments[0].ContentID)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}), msg.Attachments[0].ContentBytes)
	assert.False(t, msg.Attachments[1].IsInline)
	assert.Equal(t, fileAttachmentType, msg.Attachments[1].ODataType)
}

func TestClient_Send_ReusesToken(t *testing.T) {
	fake := &fakeGraph{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newTestClient(srv)
	require.NoError(t, c.Send(t.Context(), testMessage()))
	require.NoError(t, c.Send(t.Context(), testMessage()))
	assert.Equal(t, int32(1), fake.tokenCalls.Load())

	// An expired token is renewed.
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, c.Send(t.Context(), testMessage()))
	assert.Equal(t, int32(2), fake.tokenCalls.Load())
}

func TestClient_Send_NotRetried(t *testing.T) {
	fake := &fakeGraph{sendCode: http.StatusServiceUnavailable}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	err := newTestClient(srv).Send(t.Context(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "ErrorSendAsDenied: not allowed")
	assert.Equal(t, int32(1), fake.sendCalls.Load())
}

func TestClient_Send_TokenRejected(t *testing.T) {
	fake := &fakeGraph{tokenCode: http.StatusUnauthorized}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	err := newTestClient(srv).Send(t.Context(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client: bad secret")
	assert.Equal(t, int32(1), fake.tokenCalls.Load(), "4xx is not retried")
	assert.Equal(t, int32(0), fake.sendCalls.Load())
}

func TestClient_Send_TokenRetriedOn5xx(t *testing.T) {
	fake := &fakeGraph{tokenCode: http.StatusBadGateway}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	err := newTestClient(srv).Send(t.Context(), testMessage())
	require.Error(t, err)
	assert.Equal(t, int32(3), fake.tokenCalls.Load(), "initial attempt plus two retries")
}

func TestClient_Send_InvalidMessage(t *testing.T) {
	c := NewClient(&config.GraphConfig{}, nil, testLogger())
	assert.Error(t, c.Send(t.Context(), nil))
	assert.Error(t, c.Send(t.Context(), &model.Message{To: " ; "}))
}

func TestRetryCondition(t *testing.T) {
	assert.True(t, retryCondition(nil, io.ErrUnexpectedEOF))
}
