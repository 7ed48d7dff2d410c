package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atlas-of-us/backend/internal/constants"
	apperrors "atlas-of-us/backend/pkg/errors"
	"atlas-of-us/backend/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrTooManyRuns is returned by Start when every run slot is taken
	ErrTooManyRuns = errors.New("too many concurrent generation runs")
)

// DomainExistsError aborts a run whose domain is too close to a stored one
type DomainExistsError struct {
	Requested string
	Existing  string
}

func (e *DomainExistsError) Error() string {
	return fmt.Sprintf("a similar domain '%s' already exists", e.Existing)
}

// Options bound how runs are scheduled
type Options struct {
	MaxConcurrentRuns int
	RunTimeout        time.Duration
}

// Orchestrator runs the fixed step sequence for one domain at a time per slot
type Orchestrator struct {
	deps     Dependencies
	runs     *semaphore.Weighted
	timeout  time.Duration
	tracer   trace.Tracer
	logger   *zap.Logger
	newSteps func(deps Dependencies, events Emitter) []Step
}

// NewOrchestrator creates a new pipeline orchestrator
func NewOrchestrator(deps Dependencies, opts Options) *Orchestrator {
	if opts.MaxConcurrentRuns < 1 {
		opts.MaxConcurrentRuns = 1
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 45 * time.Minute
	}
	return &Orchestrator{
		deps:     deps,
		runs:     semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		timeout:  opts.RunTimeout,
		tracer:   otel.Tracer("atlas-of-us/agent"),
		logger:   deps.logger(),
		newSteps: NewPipeline,
	}
}

// HealthCheck reports whether the text generator is reachable
func (o *Orchestrator) HealthCheck(ctx context.Context) error {
	return o.deps.LLM.HealthCheck(ctx)
}

// Start launches a run in the background and returns its event stream. The
// run is detached from the caller: it continues if the consumer goes away and
// is bounded only by the run timeout. The channel closes when the run ends.
func (o *Orchestrator) Start(domainName, description string) (<-chan Event, string, error) {
	if !o.runs.TryAcquire(1) {
		return nil, "", ErrTooManyRuns
	}

	runID := uuid.NewString()
	sink := NewEventSink(constants.EventBufferSize, o.deps.Metrics)

	go func() {
		defer o.runs.Release(1)
		defer sink.Close()

		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()

		result, err := o.Run(ctx, runID, domainName, description, sink)
		if err != nil {
			return
		}
		o.logger.Info("Domain generation completed",
			zap.String("run_id", runID),
			zap.Int("nodes_created", result.Registry.CountCreated()),
			zap.Int("nodes_reused", result.Registry.CountReused()),
			zap.Int64("generation_time_ms", result.Statistics.GenerationTimeMs),
		)
	}()

	return sink.Events(), runID, nil
}

// Run executes the pre-check and every step in order, emitting progress to
// events. It stops at the first failing step.
func (o *Orchestrator) Run(ctx context.Context, runID, domainName, description string, events Emitter) (*Result, error) {
	log := logger.ForRun(o.logger, runID, domainName)
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "generate_domain", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("domain.name", domainName),
	))
	defer span.End()

	o.deps.Metrics.RunStarted()

	existing, err := o.checkDomainExists(ctx, domainName)
	if err != nil {
		err = runTimeout(ctx, start, err)
		log.Error("Domain pre-check failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		events.Emit(Failed{Error: err.Error()})
		o.deps.Metrics.RunFinished("failed")
		return nil, err
	}
	if existing != "" {
		log.Info("Similar domain already exists", zap.String("existing", existing))
		events.Emit(DomainExists{RequestedName: domainName, ExistingName: existing})
		o.deps.Metrics.RunFinished("domain_exists")
		return nil, &DomainExistsError{Requested: domainName, Existing: existing}
	}

	deps := o.deps
	deps.Logger = log
	steps := o.newSteps(deps, events)

	events.Emit(Started{DomainName: domainName, TotalAgents: len(steps)})
	gc := NewGenerationContext(domainName, description)

	for i, step := range steps {
		agent := step.Type()
		events.Emit(AgentStarted{Agent: agent, AgentNumber: i + 1, AgentName: agent.DisplayName()})
		log.Info("Starting agent", zap.String("agent", string(agent)))

		if err := o.runStep(ctx, step, gc); err != nil {
			err = runTimeout(ctx, start, err)
			fields := []zap.Field{zap.String("agent", string(agent)), zap.Error(err)}
			if kind, ok := apperrors.LLMKind(err); ok {
				fields = append(fields, zap.String("llm_error_kind", string(kind)))
			}
			log.Error("Agent failed", fields...)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			events.Emit(AgentFailed{Agent: agent, Error: err.Error()})
			events.Emit(Failed{
				Error:         err.Error(),
				LastAgent:     agent,
				PartialResult: gc.Registry.Snapshot(),
			})
			o.deps.Metrics.RunFinished("failed")
			return nil, apperrors.NewStepFailed(string(agent), err)
		}

		if err := gc.Registry.Validate(); err != nil {
			log.Warn("Registry references unknown nodes", zap.String("agent", string(agent)), zap.Error(err))
		}

		created, reused := stepCounts(agent, gc.Registry)
		log.Info("Agent completed",
			zap.String("agent", string(agent)),
			zap.Int("created", created),
			zap.Int("reused", reused),
		)
		events.Emit(AgentCompleted{Agent: agent, NodesCreated: created, NodesReused: reused})
	}

	stats := gc.Registry.Statistics()
	stats.GenerationTimeMs = time.Since(start).Milliseconds()
	events.Emit(Completed{DomainName: domainName, Statistics: stats})
	o.deps.Metrics.RunFinished("completed")

	return &Result{
		RunID:      runID,
		DomainName: domainName,
		DomainID:   gc.DomainID,
		Registry:   gc.Registry,
		Statistics: stats,
	}, nil
}

func (o *Orchestrator) runStep(ctx context.Context, step Step, gc *GenerationContext) error {
	agent := string(step.Type())
	ctx, span := o.tracer.Start(ctx, "step."+agent)
	defer span.End()

	started := time.Now()
	err := step.Execute(ctx, gc)
	o.deps.Metrics.ObserveStep(agent, err != nil, time.Since(started))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// runTimeout reports err as a run timeout when the run's deadline has passed
func runTimeout(ctx context.Context, start time.Time, err error) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	var limit time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		limit = deadline.Sub(start).Round(time.Millisecond)
	}
	timeoutErr := apperrors.NewContextTimeout("generate domain", limit)
	timeoutErr.Err = err
	return timeoutErr
}

// checkDomainExists returns the name of a stored Domain scoring at or above
// the policy threshold, or "" when there is none
func (o *Orchestrator) checkDomainExists(ctx context.Context, domainName string) (string, error) {
	similar, err := o.deps.Store.FindSimilar(ctx, domainName, LabelDomain, 1)
	if err != nil {
		return "", fmt.Errorf("similarity search failed: %w", err)
	}
	if len(similar) > 0 && similar[0].Score >= o.deps.Policy.DomainExists {
		return similar[0].Name, nil
	}
	return "", nil
}

// stepCounts reports the created/reused node counts attributed to one step
func stepCounts(agent AgentType, registry *DomainGraphRegistry) (created, reused int) {
	if agent == AgentDomainArchitect {
		created = len(registry.DomainLevels)
		if registry.Domain != nil {
			created++
		}
		return created, 0
	}
	if category, ok := agent.Category(); ok {
		return registry.CountCategory(category)
	}
	return 0, 0
}
