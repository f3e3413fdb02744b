package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/recipescan/internal/model"
)

// Step is one phase of a crawl. Steps run in sequence, each receiving the
// report filled in by the steps before it.
//
// Design decision: Steps are an interface rather than function types because:
// 1. Steps carry their own components and settings
// 2. Name() gives every log line and the report a stable step name
type Step interface {
	// Do executes the step against report.
	// It returns an error only when the crawl cannot go on; failures of a
	// single category or item are recorded in the report instead.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// finalSteps run after steps on every return path, including
	// cancellation and step failure.
	finalSteps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, a default logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors
// are recorded in the report, but subsequent steps still execute.
//
// The default is to stop, since a failed listing step (no browser, no
// categories) leaves nothing for later steps to do.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	// Set default logger if not provided
	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that runs after the regular steps however
// Execute returns. Final steps see a context that is never cancelled, so
// they must not block.
func (p *Pipeline) AddFinalStep(step Step) {
	p.finalSteps = append(p.finalSteps, step)
}

// Execute runs all pipeline steps in sequence.
// It respects context cancellation and logs each step's execution.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps should handle their own timeouts. This allows
// graceful cleanup between steps while still respecting cancellation.
//
// Returns the first error encountered if continueOnError is false,
// or nil if all steps complete (errors are recorded in report).
// Final steps and FinishedAt are applied on every return path.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) (err error) {
	defer func() {
		if ferr := p.finalize(ctx, report); ferr != nil && err == nil {
			err = ferr
		}
		report.FinishedAt = time.Now()
	}()

	for _, step := range p.steps {
		// Check for cancellation before starting each step
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.TimedOut = true
			return ctx.Err()
		default:
			// Continue with execution
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"run_id", report.RunID,
		)

		// Execute the step
		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run_id", report.RunID,
				"error", err,
			)

			// Record the error in the report
			report.Error = err
			report.ErrorMessage = err.Error()

			// Stop or continue based on configuration
			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"run_id", report.RunID,
			)
		}

		// Track which steps were performed
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	// A step that absorbed a cancellation still leaves a partial crawl.
	if err := ctx.Err(); err != nil {
		p.logger.Warn("pipeline cancelled after last step", "reason", err)
		report.TimedOut = true
		return err
	}
	return nil
}

// finalize runs the final steps. An interrupted crawl still reaches them,
// so they run under a context detached from ctx's cancellation.
func (p *Pipeline) finalize(ctx context.Context, report *model.CrawlReport) error {
	ctx = context.WithoutCancel(ctx)

	var first error
	for _, step := range p.finalSteps {
		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("final step failed",
				"step", step.Name(),
				"run_id", report.RunID,
				"error", err,
			)
			if report.Error == nil {
				report.Error = err
				report.ErrorMessage = err.Error()
			}
			if first == nil {
				first = err
			}
			continue
		}
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return first
}

// StepCount returns the number of steps in the pipeline, final steps
// included.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finalSteps)
}

// StepNames returns the names of all steps in execution order, final steps
// last.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalSteps {
		names = append(names, step.Name())
	}
	return names
}
