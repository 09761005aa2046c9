// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/pgo/internal/core/domain"
)

// Executor defines the interface for running external commands.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the invocation and waits for it to exit.
	//
	// The child inherits the current process environment with inv.Environment
	// applied on top; the current process environment is left untouched.
	// Output is copied to stdout and stderr in addition to the logger.
	//
	// It returns an error if the command cannot be started or exits non-zero.
	Execute(ctx context.Context, inv *domain.Invocation, stdout, stderr io.Writer) error
}
