package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func dialErr() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestRetryTransportReplaysBody(t *testing.T) {
	var bodies []string
	rt := &retryTransport{
		maxRetries: 2,
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			b, _ := io.ReadAll(r.Body)
			bodies = append(bodies, string(b))
			if len(bodies) < 3 {
				return nil, dialErr()
			}
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
	}
	req, err := http.NewRequest(http.MethodPost, "http://api.test/sendMessage", strings.NewReader("chat_id=1"))
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"chat_id=1", "chat_id=1", "chat_id=1"}, bodies)
}

func TestRetryTransportStopsOnPermanentError(t *testing.T) {
	calls := 0
	rt := &retryTransport{
		maxRetries: 3,
		base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("bad request")
		}),
	}
	req, err := http.NewRequest(http.MethodGet, "http://api.test/getMe", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBuildHTTPClientCoversLongPoll(t *testing.T) {
	c := BuildHTTPClient(50 * time.Second)
	assert.Greater(t, c.Timeout, 50*time.Second)
	tr := c.Transport.(*retryTransport).base.(*http.Transport)
	assert.Greater(t, tr.ResponseHeaderTimeout, 50*time.Second)
}
