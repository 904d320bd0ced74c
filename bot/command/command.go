// Package command decodes operator button payloads into a closed set of
// commands. Payloads are decoded once at the boundary; everything after
// works with typed values.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action is an operator action.
type Action int

const (
	Reply Action = iota + 1
	Block
	Unblock
	Broadcast
	Report
	UserManagement
	BackToAdmin
)

// ErrMalformed is returned for payloads that are not a known command.
var ErrMalformed = errors.New("command: malformed payload")

var simple = map[string]Action{
	"mass_broadcast":  Broadcast,
	"generate_report": Report,
	"user_management": UserManagement,
	"back_to_admin":   BackToAdmin,
}

var targeted = map[string]Action{
	"reply":   Reply,
	"block":   Block,
	"unblock": Unblock,
}

// Command is a decoded operator action. UserID is set for Reply, Block and
// Unblock only.
type Command struct {
	Action Action
	UserID int64
}

// Targeted reports whether the action addresses a single user.
func (a Action) Targeted() bool {
	return a == Reply || a == Block || a == Unblock
}

func (a Action) String() string {
	for name, v := range simple {
		if v == a {
			return name
		}
	}
	for name, v := range targeted {
		if v == a {
			return name
		}
	}
	return "unknown"
}

// Parse decodes a callback payload such as "reply_123" or "mass_broadcast".
func Parse(data string) (Command, error) {
	data = strings.TrimSpace(data)
	if a, ok := simple[data]; ok {
		return Command{Action: a}, nil
	}
	name, arg, ok := strings.Cut(data, "_")
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformed, data)
	}
	a, ok := targeted[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformed, data)
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformed, data)
	}
	return Command{Action: a, UserID: id}, nil
}

// Payload encodes c back into its callback payload.
func (c Command) Payload() string {
	if c.Action.Targeted() {
		return c.Action.String() + "_" + strconv.FormatInt(c.UserID, 10)
	}
	return c.Action.String()
}
