package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type fakeSetter struct{ got []tele.Command }

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	for _, o := range opts {
		if list, ok := o.([]tele.Command); ok {
			f.got = list
		}
	}
	return nil
}

func TestRegistryCommands(t *testing.T) {
	noop := func(tele.Context) error { return nil }
	reg := NewRegistry()
	reg.RegisterCommand("/start", Command{Handler: noop, Description: "Start", Aliases: []string{"begin"}})
	reg.RegisterCommand("/stats", Command{Handler: noop, Description: "Stats", AdminOnly: true})
	reg.RegisterCommand("help", Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/start", Command{Handler: noop, Description: "duplicate"})

	require.Len(t, reg.Commands(), 2)
	assert.Equal(t, "Start", reg.Commands()["/start"].Description)

	key, _, ok := reg.LookupCommand("begin")
	assert.True(t, ok)
	assert.Equal(t, "/start", key)

	all := reg.ListCommands(false)
	assert.Len(t, all, 2)

	setter := &fakeSetter{}
	SetupCommands(setter, reg)
	assert.Equal(t, []tele.Command{{Text: "start", Description: "Start"}}, setter.got)
}
