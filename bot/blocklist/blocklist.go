// Package blocklist keeps the in-memory set of blocked users in step with
// the persisted flag. The set changes only after the write succeeded.
package blocklist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/state"
)

// Store persists the blocked flag.
type Store interface {
	SetBlocked(ctx context.Context, userID int64, blocked bool) error
	BlockedIDs(ctx context.Context) ([]int64, error)
}

// List is the BlockSet shared by the router, the questionnaire and the
// operator commands.
type List struct {
	// mu serializes writes so the set never disagrees with the stored flag.
	mu    sync.Mutex
	store Store
	set   *state.KeySet
}

// New returns an empty list backed by s.
func New(s Store) *List {
	return &List{store: s, set: state.NewKeySet()}
}

// Load replaces the in-memory set with the persisted blocked ids.
func (l *List) Load(ctx context.Context) error {
	ids, err := l.store.BlockedIDs(ctx)
	if err != nil {
		return fmt.Errorf("blocklist: load: %w", err)
	}
	l.set.Replace(ids)
	logger.Info(ctx, "blocklist", "blocklist.loaded", slog.Int("count", len(ids)))
	return nil
}

// Block persists and applies the block. Blocking a blocked user succeeds.
func (l *List) Block(ctx context.Context, userID int64) error {
	return l.apply(ctx, userID, true)
}

// Unblock persists and lifts the block. Unblocking an unblocked user succeeds.
func (l *List) Unblock(ctx context.Context, userID int64) error {
	return l.apply(ctx, userID, false)
}

func (l *List) apply(ctx context.Context, userID int64, blocked bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.SetBlocked(ctx, userID, blocked); err != nil {
		return err
	}
	var changed bool
	if blocked {
		changed = l.set.Add(userID)
	} else {
		changed = l.set.Remove(userID)
	}
	logger.Info(ctx, "blocklist", "blocklist.set",
		slog.Int64("target_id", userID),
		slog.Bool("blocked", blocked),
		slog.Bool("changed", changed),
	)
	return nil
}

// Contains reports whether userID is blocked.
func (l *List) Contains(userID int64) bool {
	return l.set.Contains(userID)
}

// Len returns the number of blocked users.
func (l *List) Len() int {
	return l.set.Len()
}
