package domain

import (
	"context"
	"errors"
)

var (
	// ErrProgramNotFound is returned by ProgramStore.Lookup on a miss.
	ErrProgramNotFound = errors.New("program not found")
	// ErrStoreUnavailable is returned when a store backend cannot be reached and has no fallback.
	ErrStoreUnavailable = errors.New("program store unavailable")
)

// ProgramStore keeps solved programs so agents can reuse them.
// This abstracts away the specific implementations (memory, Redis, PostgreSQL).
type ProgramStore interface {
	// Lookup returns the stored program for a problem or ErrProgramNotFound.
	Lookup(ctx context.Context, problem string) (*Program, error)

	// Save stores or replaces the program for its problem.
	Save(ctx context.Context, program Program) error
}

// WALRepository defines the interface for the Write-Ahead Log failover mechanism.
type WALRepository interface {
	// Write appends a program to the local WAL file.
	Write(ctx context.Context, program Program) error

	// Replay reads programs from the WAL and sends them to a handler function.
	// The handler is responsible for re-saving the program (e.g., to Redis).
	Replay(ctx context.Context, handler func(program Program) error) error

	// Truncate removes WAL segments that have been successfully replayed.
	Truncate(ctx context.Context) error
}

// TaskEventPublisher ships task lifecycle events to an external system.
type TaskEventPublisher interface {
	PublishTaskEvent(ctx context.Context, event TaskEvent) error
}
