package health

import (
	"context"
	"time"
)

// DefaultTimeout is the default timeout for health checks.
const DefaultTimeout = 5 * time.Second

// Status represents the health status of a component.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
	// StatusDegraded marks an optional dependency that is unavailable.
	StatusDegraded Status = "degraded"
)

// Result is the outcome of a single health check.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Checker is the interface for health check implementations.
type Checker interface {
	// Name returns the name of the component being checked.
	Name() string
	// Check performs the health check and returns the result.
	Check(ctx context.Context) Result
}

// CheckFunc adapts a plain function to Checker.
type CheckFunc struct {
	ComponentName string
	Fn            func(ctx context.Context) error
}

func (f CheckFunc) Name() string { return f.ComponentName }

func (f CheckFunc) Check(ctx context.Context) Result {
	if err := f.Fn(ctx); err != nil {
		return Result{Status: StatusDown, Message: err.Error()}
	}
	return Result{Status: StatusUp}
}

// Optional wraps a checker whose failure degrades the service without making
// it unready.
func Optional(c Checker) Checker {
	return optional{Checker: c}
}

type optional struct {
	Checker
}

func (o optional) Check(ctx context.Context) Result {
	res := o.Checker.Check(ctx)
	if res.Status == StatusDown {
		res.Status = StatusDegraded
	}
	return res
}
