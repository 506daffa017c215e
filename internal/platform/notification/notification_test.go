package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTwilio(t *testing.T, handler http.HandlerFunc) *TwilioClient {
	t.Helper()
	return newTestTwilioWith(t, handler, 0, zerolog.Nop())
}

func newTestTwilioWith(t *testing.T, handler http.HandlerFunc, timeout time.Duration, logger zerolog.Logger) *TwilioClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTwilioClient(TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550001111",
		BaseURL:    srv.URL,
		Timeout:    timeout,
	}, logger)
}

func TestTwilioClient_SendSMS(t *testing.T) {
	client := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15552223333", r.PostForm.Get("To"))
		assert.Equal(t, "+15550001111", r.PostForm.Get("From"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sid":          "SM0001",
			"status":       "queued",
			"to":           "+15552223333",
			"from":         "+15550001111",
			"body":         "hello",
			"date_created": "Mon, 15 Jan 2024 10:00:00 +0000",
		})
	})

	receipt, err := client.SendSMS(context.Background(), "+15552223333", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SM0001", receipt.SID)
	assert.Equal(t, "queued", receipt.Status)
	assert.Equal(t, "+15552223333", receipt.To)
	require.NotNil(t, receipt.DateCreated)
	assert.Equal(t, 2024, receipt.DateCreated.Year())
	assert.Nil(t, receipt.DateSent)
}

func TestTwilioClient_SendSMS_APIError(t *testing.T) {
	var hits int32
	client := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    21211,
			"message": "The 'To' number is not a valid phone number.",
			"status":  400,
		})
	})

	_, err := client.SendSMS(context.Background(), "not-a-number", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "4xx responses must not be retried")
}

func TestTwilioClient_SendSMS_NoRetryOnServerError(t *testing.T) {
	var posts int32
	client := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.SendSMS(context.Background(), "+15552223333", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts), "a failed send must not be posted again")
}

func TestTwilioClient_SendSMS_NoRetryOnTimeout(t *testing.T) {
	var posts int32
	client := newTestTwilioWith(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM0002", "status": "queued"})
	}, 100*time.Millisecond, zerolog.Nop())

	_, err := client.SendSMS(context.Background(), "+15552223333", "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts), "a timed-out send may already be accepted")
}

func TestTwilioClient_FetchMessage_RetriesServerErrors(t *testing.T) {
	var hits int32
	client := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM0002", "status": "delivered"})
	})

	receipt, err := client.FetchMessage(context.Background(), "SM0002")
	require.NoError(t, err)
	assert.Equal(t, "delivered", receipt.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestTwilioClient_LogsThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	client := newTestTwilioWith(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM0003", "status": "queued"})
	}, 0, zerolog.New(&buf))

	_, err := client.SendSMS(context.Background(), "+15552223333", "hello")
	require.NoError(t, err)

	// The plain-HTTP test server triggers resty's basic auth warning.
	out := buf.String()
	assert.Contains(t, out, `"component":"twilio"`)
	assert.Contains(t, out, `"client":"resty"`)
	assert.Contains(t, out, "Basic Auth")
}

func TestTwilioClient_FetchMessage(t *testing.T) {
	client := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages/SM0001.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sid":           "SM0001",
			"status":        "undelivered",
			"error_code":    30003,
			"error_message": "Unreachable destination handset",
		})
	})

	receipt, err := client.FetchMessage(context.Background(), "SM0001")
	require.NoError(t, err)
	assert.Equal(t, "undelivered", receipt.Status)
	require.NotNil(t, receipt.ErrorCode)
	assert.Equal(t, 30003, *receipt.ErrorCode)
	assert.Equal(t, "Unreachable destination handset", receipt.ErrorText)
}

func TestTwilioClient_Unavailable(t *testing.T) {
	client := NewTwilioClient(TwilioConfig{AccountSID: "AC123"}, zerolog.Nop())
	assert.False(t, client.Available())

	_, err := client.SendSMS(context.Background(), "+15552223333", "hello")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	_, err = client.FetchMessage(context.Background(), "SM1")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestMockSMSGateway(t *testing.T) {
	m := &MockSMSGateway{FailFor: map[string]bool{"+1999": true}}
	assert.True(t, m.Available())

	receipt, err := m.SendSMS(context.Background(), "+1555", "first")
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.SID)

	_, err = m.SendSMS(context.Background(), "+1999", "second")
	assert.Error(t, err)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Body)

	fetched, err := m.FetchMessage(context.Background(), receipt.SID)
	require.NoError(t, err)
	assert.Equal(t, "delivered", fetched.Status)

	m.Disabled = true
	assert.False(t, m.Available())
	_, err = m.SendSMS(context.Background(), "+1555", "third")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}
