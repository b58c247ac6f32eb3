// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/assetbuilder/internal/core/domain"
)

// Runner executes build commands.
//
//go:generate go run go.uber.org/mock/mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type Runner interface {
	// Run executes cmd in dir and returns its exit code.
	//
	// A non-zero exit is reported through the exit code, not the error.
	// The error is set only when the command could not be started.
	Run(ctx context.Context, cmd *domain.BuildCommand, dir string) (int, error)
}
