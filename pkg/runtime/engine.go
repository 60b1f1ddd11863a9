package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/types"
)

const defaultWaveParallelism = 8

// Engine is the embedded runtime: one instance per sealed binary
// invocation, built from the plan and modules sealed in at compile
// time. It never talks to anything but the optional controller
// endpoint and the module functions it dispatches to.
type Engine struct {
	plan      types.ExecutionPlan
	variables map[string]interface{}
	modules   map[string]ModuleFunc
	reporter  *reporter
	timeout   time.Duration

	requiredFacts []string

	mu      sync.Mutex
	results map[string]types.TaskResult
}

// New parses the embedded plan and variables and builds an Engine
// ready to Run. A parse failure here is a setup error: the binary
// exits ExitSetup before touching any module.
func New(cfg Config) (*Engine, error) {
	var plan types.ExecutionPlan
	if err := json.Unmarshal(cfg.Plan, &plan); err != nil {
		return nil, errdefs.NewPermanent("failed to deserialize embedded plan", err).
			WithCode(errdefs.CodeInvalidEmbeddedPlan)
	}

	variables := map[string]interface{}{}
	if len(cfg.Variables) > 0 {
		if err := json.Unmarshal(cfg.Variables, &variables); err != nil {
			return nil, errdefs.NewPermanent("failed to deserialize embedded variables", err).
				WithCode(errdefs.CodeInvalidEmbeddedPlan)
		}
	}

	timeout := cfg.DefaultTaskTimeout
	if timeout <= 0 {
		timeout = defaultModuleTimeout
	}

	return &Engine{
		plan:          plan,
		variables:     variables,
		modules:       cfg.Modules,
		reporter:      newReporter(cfg.ControllerURL),
		timeout:       timeout,
		requiredFacts: cfg.RequiredFacts,
		results:       make(map[string]types.TaskResult),
	}, nil
}

// Run executes every play's batches in order and returns the process
// exit code: ExitSuccess iff every task ended Success or Skipped.
func (e *Engine) Run(ctx context.Context) int {
	facts, factsErr := collectFacts(ctx)
	scope := mergeScope(e.variables, facts.asMap())

	missingFacts := missingRequiredFacts(e.requiredFacts, facts, factsErr)

	for _, play := range e.plan.Plays {
		playScope := mergeScope(scope, play.Variables)

		for _, batch := range play.Batches {
			notified := make(map[string]bool)
			graph, err := buildWaves(batch.Tasks)
			if err != nil {
				e.recordSetupFailure(batch.Tasks, err)
				continue
			}

			for _, wave := range graph.waves {
				e.runWave(ctx, wave, playScope, missingFacts)
			}

			e.fireHandlers(ctx, play.Handlers, graph, playScope, missingFacts, notified)
		}
	}

	return e.exitCode()
}

// runWave executes every task in a wave concurrently, bounded by
// defaultWaveParallelism.
func (e *Engine) runWave(ctx context.Context, wave []types.Task, scope map[string]interface{}, missingFacts []string) {
	sem := make(chan struct{}, defaultWaveParallelism)
	var wg sync.WaitGroup

	for _, task := range wave {
		task := task
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			e.runTask(ctx, task, scope, missingFacts)
		}()
	}

	wg.Wait()
}

// runTask resolves skip/condition/fact-availability precedence, then
// dispatches to the registered module with retry and timeout.
func (e *Engine) runTask(ctx context.Context, task types.Task, scope map[string]interface{}, missingFacts []string) {
	start := time.Now()

	if reason, skip := e.upstreamSkipReason(task); skip {
		e.finish(ctx, task.ID, types.TaskResult{
			TaskID: task.ID, Status: types.TaskSkipped, Skipped: true,
			Reason: reason, StartedAt: start, EndedAt: time.Now(),
		})
		return
	}

	ok, err := evaluateCondition(ctx, task.Condition, scope)
	if err != nil {
		e.finish(ctx, task.ID, types.TaskResult{
			TaskID: task.ID, Status: types.TaskFailed, Failed: true,
			Error: err.Error(), Reason: "condition-evaluation-error",
			StartedAt: start, EndedAt: time.Now(),
		})
		return
	}
	if !ok {
		e.finish(ctx, task.ID, types.TaskResult{
			TaskID: task.ID, Status: types.TaskSkipped, Skipped: true,
			Reason: "condition-not-met", StartedAt: start, EndedAt: time.Now(),
		})
		return
	}

	if len(missingFacts) > 0 {
		e.finish(ctx, task.ID, types.TaskResult{
			TaskID: task.ID, Status: types.TaskFailed, Failed: true,
			Reason: fmt.Sprintf("facts unavailable: %v", missingFacts),
			Error:  "required facts could not be collected",
			StartedAt: start, EndedAt: time.Now(),
		})
		return
	}

	e.dispatch(ctx, task, start)
}

// upstreamSkipReason reports whether task must be skipped because a
// DependsOn predecessor ended Skipped (cascading "upstream-skipped")
// or Failed/Timeout/Cancelled ("upstream-failed").
func (e *Engine) upstreamSkipReason(task types.Task) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sawSkipped := false
	for _, dep := range task.DependsOn {
		result, ok := e.results[dep]
		if !ok {
			continue
		}
		switch result.Status {
		case types.TaskFailed, types.TaskTimeout, types.TaskCancelled:
			return "upstream-failed", true
		case types.TaskSkipped:
			sawSkipped = true
		}
	}
	if sawSkipped {
		return "upstream-skipped", true
	}
	return "", false
}

// dispatch looks up and invokes the task's module, applying retry and
// a per-task timeout (task.Timeout, falling back to the engine default).
func (e *Engine) dispatch(ctx context.Context, task types.Task, start time.Time) {
	fn, ok := e.modules[task.Module]
	if !ok {
		e.finish(ctx, task.ID, types.TaskResult{
			TaskID: task.ID, Status: types.TaskFailed, Failed: true,
			Error: fmt.Sprintf("module not found: %s", task.Module),
			StartedAt: start, EndedAt: time.Now(),
		})
		return
	}

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	maxAttempts := task.Retry.MaxRetries + 1
	var modResult ModuleResult
	var callErr error
	var timedOut bool

	for attempt := 0; attempt < maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		modResult, callErr, timedOut = callModule(callCtx, fn, task.Args)
		cancel()

		if callErr == nil && !modResult.Failed {
			break
		}
		if attempt < maxAttempts-1 && task.Retry.Backoff > 0 {
			select {
			case <-time.After(task.Retry.Backoff):
			case <-ctx.Done():
			}
		}
	}

	end := time.Now()
	result := types.TaskResult{
		TaskID: task.ID, StartedAt: start, EndedAt: end, Duration: end.Sub(start),
		Changed: modResult.Changed, Stdout: modResult.Stdout, Stderr: modResult.Stderr,
		Output: modResult.Output,
	}

	switch {
	case timedOut:
		result.Status = types.TaskTimeout
		result.Failed = true
		result.Error = "module invocation timed out"
	case callErr != nil:
		result.Status = types.TaskFailed
		result.Failed = true
		result.Error = callErr.Error()
	case modResult.Failed:
		result.Status = types.TaskFailed
		result.Failed = true
		result.Error = modResult.Error
	default:
		result.Status = types.TaskSuccess
	}

	e.finish(ctx, task.ID, result)
}

// callModule runs fn and recovers from timeout via context
// cancellation, distinguishing a deadline-exceeded abort from any
// other module error.
func callModule(ctx context.Context, fn ModuleFunc, args map[string]interface{}) (ModuleResult, error, bool) {
	type outcome struct {
		res ModuleResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := fn(ctx, args)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return ModuleResult{}, ctx.Err(), true
	case o := <-ch:
		return o.res, o.err, false
	}
}

// fireHandlers runs, at most once per batch, every handler notified by
// a task in this batch whose result had Changed == true.
func (e *Engine) fireHandlers(ctx context.Context, handlers []types.Task, graph *waveGraph, scope map[string]interface{}, missingFacts []string, notified map[string]bool) {
	if len(handlers) == 0 {
		return
	}

	handlerByID := make(map[string]types.Task, len(handlers))
	for _, h := range handlers {
		handlerByID[h.ID] = h
	}

	e.mu.Lock()
	toFire := make([]string, 0)
	for handlerID, notifiers := range graph.notify {
		if notified[handlerID] {
			continue
		}
		if _, isHandler := handlerByID[handlerID]; !isHandler {
			continue
		}
		for _, notifierID := range notifiers {
			if result, ok := e.results[notifierID]; ok && result.Changed {
				toFire = append(toFire, handlerID)
				notified[handlerID] = true
				break
			}
		}
	}
	e.mu.Unlock()

	sort.Strings(toFire)
	for _, handlerID := range toFire {
		e.runTask(ctx, handlerByID[handlerID], scope, missingFacts)
	}
}

func (e *Engine) finish(ctx context.Context, taskID string, result types.TaskResult) {
	e.mu.Lock()
	e.results[taskID] = result
	e.mu.Unlock()
	e.reporter.report(ctx, taskID, result)
}

func (e *Engine) recordSetupFailure(tasks []types.Task, err error) {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range tasks {
		e.results[t.ID] = types.TaskResult{
			TaskID: t.ID, Status: types.TaskFailed, Failed: true,
			Error: err.Error(), StartedAt: now, EndedAt: now,
		}
	}
}

// exitCode is ExitSuccess iff every recorded result ended Success or
// Skipped.
func (e *Engine) exitCode() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, result := range e.results {
		if result.Status != types.TaskSuccess && result.Status != types.TaskSkipped {
			return ExitFailed
		}
	}
	return ExitSuccess
}

func mergeScope(base map[string]interface{}, overlay map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// missingRequiredFacts reports which of requiredFacts are absent from
// facts, treating a collection error as "every required fact missing".
func missingRequiredFacts(requiredFacts []string, facts hostFacts, collectErr error) []string {
	if len(requiredFacts) == 0 {
		return nil
	}
	available := facts.asMap()
	missing := make([]string, 0)
	for _, name := range requiredFacts {
		if collectErr != nil {
			missing = append(missing, name)
			continue
		}
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
