// Package state keeps the in-memory, per-user state of the bot: id sets
// mirrored from storage and the registry of in-progress sessions.
// Every operation is atomic per user id.
package state
