package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"imagelab/internal/domain"
	"imagelab/internal/infra"
	"imagelab/internal/providers/media"
	"imagelab/internal/providers/translate"
	"imagelab/internal/retry"
)

const (
	DefaultCallTimeout  = 3 * time.Minute
	DefaultBatchTimeout = 10 * time.Minute
)

// ErrBatchDeadline marks slots that had not finished when the batch timed out.
var ErrBatchDeadline = errors.New("batch deadline exceeded before the model finished")

// Resolver finds the adapter and retry policy for a provider key.
type Resolver interface {
	Lookup(key string) (media.Generator, retry.Policy, bool)
}

// Options tunes the worker pool and its deadlines.
type Options struct {
	// Concurrency bounds parallel adapter calls. Values below one run sequentially.
	Concurrency  int
	CallTimeout  time.Duration
	BatchTimeout time.Duration
	Logger       *infra.Logger
}

// Dispatcher fans a prompt out to the selected models and gathers one result per model.
type Dispatcher struct {
	resolver     Resolver
	translator   translate.Translator
	concurrency  int
	callTimeout  time.Duration
	batchTimeout time.Duration
	logger       *infra.Logger
}

// Submission is one user request.
type Submission struct {
	Prompt     string
	Style      domain.StyleDescriptor
	Models     []domain.ModelDescriptor
	OnProgress func(domain.Progress)
}

// Batch is the outcome of a submission. Results follow the order of Submission.Models.
type Batch struct {
	ID               string
	Prompt           string
	TranslatedPrompt string
	FullPrompt       string
	Style            domain.StyleDescriptor
	Results          []domain.Result
	Duration         time.Duration
}

// Failed counts error results.
func (b *Batch) Failed() int {
	n := 0
	for _, r := range b.Results {
		if !r.Succeeded() {
			n++
		}
	}
	return n
}

func New(resolver Resolver, translator translate.Translator, opts Options) *Dispatcher {
	if translator == nil {
		translator = translate.Identity{}
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	batchTimeout := opts.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Nop()
	}
	return &Dispatcher{
		resolver:     resolver,
		translator:   translator,
		concurrency:  concurrency,
		callTimeout:  callTimeout,
		batchTimeout: batchTimeout,
		logger:       logger,
	}
}

// Run translates the prompt, dispatches it to every model and returns exactly
// len(sub.Models) results. Only invalid input yields an error; adapter failures
// become error results.
func (d *Dispatcher) Run(ctx context.Context, sub Submission) (*Batch, error) {
	prompt := strings.TrimSpace(sub.Prompt)
	if prompt == "" {
		return nil, domain.ErrInvalidPrompt
	}
	if len(sub.Models) == 0 {
		return nil, domain.ErrNoModels
	}
	started := time.Now()
	batch := &Batch{
		ID:     uuid.NewString(),
		Prompt: prompt,
		Style:  sub.Style,
	}
	logger := d.logger.With().Str("batch_id", batch.ID).Int("models", len(sub.Models)).Logger()

	batchCtx, cancel := context.WithTimeout(ctx, d.batchTimeout)
	defer cancel()

	batch.TranslatedPrompt = d.translator.Translate(batchCtx, prompt)
	batch.FullPrompt = ComposePrompt(sub.Style, batch.TranslatedPrompt)

	slots := newCollector(batch.ID, sub.Models, sub.OnProgress)
	group := new(errgroup.Group)
	group.SetLimit(d.concurrency)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range sub.Models {
			group.Go(func() error {
				d.runSlot(batchCtx, &logger, slots, i, batch.FullPrompt, sub.Style)
				return nil
			})
		}
		group.Wait()
	}()

	select {
	case <-done:
	case <-batchCtx.Done():
		logger.Warn().Err(batchCtx.Err()).Msg("dispatch: batch deadline reached")
	}
	batch.Results = slots.seal()
	batch.Duration = time.Since(started)
	logger.Info().
		Int("failed", batch.Failed()).
		Dur("duration", batch.Duration).
		Msg("dispatch: batch finished")
	return batch, nil
}

func (d *Dispatcher) runSlot(ctx context.Context, logger *zerolog.Logger, slots *collector, i int, prompt string, style domain.StyleDescriptor) {
	model := slots.model(i)
	started := time.Now()
	attempts := 0
	var (
		url string
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: adapter panic: %v", domain.ErrProviderFailure, r)
			url = ""
		}
		res := domain.NewResult(model, url, err)
		res.Attempts = attempts
		res.Duration = time.Since(started)
		slots.finish(i, res)
		level := zerolog.DebugLevel
		if err != nil {
			level = zerolog.WarnLevel
		}
		logger.WithLevel(level).Err(err).
			Str("model", model.Title).
			Str("provider", model.GenerationApp).
			Int("attempts", attempts).
			Dur("duration", res.Duration).
			Msg("dispatch: slot finished")
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %v", ErrBatchDeadline, ctxErr)
		return
	}
	slots.start(i)

	gen, policy, ok := d.resolver.Lookup(model.GenerationApp)
	if !ok {
		if media.KnownProvider(model.GenerationApp) {
			err = fmt.Errorf("provider %q is not configured: %w", model.GenerationApp, domain.ErrMissingCredentials)
		} else {
			err = fmt.Errorf("%w %q", domain.ErrUnknownProvider, model.GenerationApp)
		}
		return
	}
	req := media.Request{
		Prompt:         prompt,
		ModelRef:       model.Name,
		NegativePrompt: ComposeNegativePrompt(model, style),
		Title:          model.Title,
	}
	policy.OnRetry = func(attempt int, retryErr error) {
		logger.Info().Err(retryErr).Str("model", model.Title).Int("attempt", attempt).Msg("dispatch: retrying")
	}
	attempts, err = policy.Do(ctx, func(ctx context.Context, _ int) error {
		callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
		out, genErr := gen.Generate(callCtx, req)
		if genErr != nil {
			return genErr
		}
		if strings.TrimSpace(out) == "" {
			return domain.ErrEmptyMedia
		}
		url = out
		return nil
	})
}

// collector owns the result slots. Once sealed, late writers are ignored so
// the returned slice is never mutated.
type collector struct {
	mu         sync.Mutex
	batchID    string
	models     []domain.ModelDescriptor
	results    []domain.Result
	status     []domain.SlotStatus
	completed  int
	sealed     bool
	onProgress func(domain.Progress)
}

func newCollector(batchID string, models []domain.ModelDescriptor, onProgress func(domain.Progress)) *collector {
	status := make([]domain.SlotStatus, len(models))
	for i := range status {
		status[i] = domain.SlotStatusPending
	}
	return &collector{
		batchID:    batchID,
		models:     models,
		results:    make([]domain.Result, len(models)),
		status:     status,
		onProgress: onProgress,
	}
}

func (c *collector) model(i int) domain.ModelDescriptor {
	return c.models[i]
}

func (c *collector) start(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed || c.status[i] != domain.SlotStatusPending {
		return
	}
	c.status[i] = domain.SlotStatusInProgress
	c.emit(i)
}

func (c *collector) finish(i int, res domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed || c.status[i].Done() {
		return
	}
	c.results[i] = res
	if res.Succeeded() {
		c.status[i] = domain.SlotStatusSucceeded
	} else {
		c.status[i] = domain.SlotStatusFailed
	}
	c.completed++
	c.emit(i)
}

// emit must be called with mu held so progress is delivered in order.
func (c *collector) emit(i int) {
	if c.onProgress == nil {
		return
	}
	c.onProgress(domain.Progress{
		BatchID:   c.batchID,
		Completed: c.completed,
		Total:     len(c.models),
		Model:     c.models[i].Title,
		Status:    c.status[i],
	})
}

// seal fills unfinished slots with deadline errors and returns a copy of the results.
func (c *collector) seal() []domain.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, st := range c.status {
		if st.Done() {
			continue
		}
		c.results[i] = domain.NewResult(c.models[i], "", ErrBatchDeadline)
		c.status[i] = domain.SlotStatusFailed
		c.completed++
		c.emit(i)
	}
	c.sealed = true
	out := make([]domain.Result, len(c.results))
	copy(out, c.results)
	return out
}
