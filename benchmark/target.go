package benchmark

import "context"

// Target is a self-contained performance probe. Implementations measure one
// external operation and report it as a Result.
type Target interface {
	// ID returns the stable, unique identifier of this target
	ID() string

	// Name returns a human-readable name (defaults to the id)
	Name() string

	// Description explains what the target measures (may be empty)
	Description() string

	// Setup prepares the target. It must be idempotent.
	Setup(ctx context.Context) error

	// Run executes the measured workload. The inputs are generated by the
	// target itself, so a failing operation is a defect and is reported as
	// an error rather than folded into the metrics.
	Run(ctx context.Context) (*Result, error)

	// Teardown releases whatever Setup acquired
	Teardown(ctx context.Context) error
}

// BaseTarget carries the fields every target has and the default lifecycle
// methods. Targets embed it and implement Run.
type BaseTarget struct {
	TargetID          string
	TargetName        string
	TargetDescription string
	Iterations        int
}

// ID implements Target
func (b *BaseTarget) ID() string {
	return b.TargetID
}

// Name implements Target
func (b *BaseTarget) Name() string {
	if b.TargetName == "" {
		return b.TargetID
	}
	return b.TargetName
}

// Description implements Target
func (b *BaseTarget) Description() string {
	return b.TargetDescription
}

// Setup implements Target with a no-op
func (b *BaseTarget) Setup(context.Context) error {
	return nil
}

// Teardown implements Target with a no-op
func (b *BaseTarget) Teardown(context.Context) error {
	return nil
}

func (b *BaseTarget) setIterations(n int) {
	b.Iterations = n
}

// iterationSetter is satisfied by every target embedding BaseTarget
type iterationSetter interface {
	setIterations(n int)
}
