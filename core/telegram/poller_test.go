package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongPoll(t *testing.T) {
	p, err := BuildPoller(PollerOptions{RunMode: "longpoll", LongPollTimeoutSeconds: 25})
	require.NoError(t, err)
	lp, ok := p.(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 25*time.Second, lp.Timeout)
	assert.Equal(t, []string{"message", "callback_query"}, lp.AllowedUpdates)

	p, err = BuildPoller(PollerOptions{})
	require.NoError(t, err)
	assert.Equal(t, defaultLongPollTimeout, p.(*tele.LongPoller).Timeout)
}

func TestBuildPollerWebhook(t *testing.T) {
	p, err := BuildPoller(PollerOptions{
		RunMode: "WEBHOOK",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://relay.example.com/hook"},
	})
	require.NoError(t, err)
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://relay.example.com/hook", wh.Endpoint.PublicURL)

	_, err = BuildPoller(PollerOptions{RunMode: "webhook"})
	assert.Error(t, err)
}
