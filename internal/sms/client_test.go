package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wintera/fleet/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient("test-key", server.URL, logger.New("error", "text"))
	client.pollInterval = 10 * time.Millisecond
	return client
}

func TestBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "getBalance", r.URL.Query().Get("action"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Write([]byte("ACCESS_BALANCE:142.50"))
	})

	balance, err := client.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 142.50, balance)
}

func TestRentNumber(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "getNumber", r.URL.Query().Get("action"))
		assert.Equal(t, "tg", r.URL.Query().Get("service"))
		assert.Equal(t, "ru", r.URL.Query().Get("country"))
		w.Write([]byte("ACCESS_NUMBER:9981726:79261234567"))
	})

	rental, err := client.RentNumber(context.Background(), "tg", "ru")
	require.NoError(t, err)
	assert.Equal(t, "79261234567", rental.Number)
	assert.Equal(t, "9981726", rental.ActivationID)
}

func TestRentNumber_NoNumbers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("NO_NUMBERS"))
	})

	_, err := client.RentNumber(context.Background(), "tg", "ru")
	assert.ErrorIs(t, err, ErrNoNumbers)
}

func TestPollCode_ArrivesAfterWait(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.Write([]byte("STATUS_WAIT_CODE"))
			return
		}
		w.Write([]byte("STATUS_OK:12345"))
	})

	code, err := client.PollCode(context.Background(), "9981726", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "12345", code)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestPollCode_Cancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("STATUS_CANCEL"))
	})

	_, err := client.PollCode(context.Background(), "9981726", 30*time.Second)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestConfirmAndCancel(t *testing.T) {
	statuses := make(chan string, 2)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		statuses <- r.URL.Query().Get("status")
		w.Write([]byte("ACCESS_ACTIVATION"))
	})

	require.NoError(t, client.Confirm(context.Background(), "1"))
	require.NoError(t, client.Cancel(context.Background(), "1"))
	assert.Equal(t, "8", <-statuses)
	assert.Equal(t, "-1", <-statuses)
}

func TestNotConfigured(t *testing.T) {
	client := NewClient("", "http://unused", logger.New("error", "text"))
	assert.False(t, client.Configured())

	_, err := client.Balance(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
