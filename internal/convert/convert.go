// Package convert turns a source file into its converted form via the
// generation capability, with bounded retry and atomic file replacement.
package convert

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"shuttle/internal/fileutil"
	"shuttle/internal/logging"
	"shuttle/internal/services"
	"shuttle/internal/services/gemini"
)

const defaultMaxAttempts = 4

// Outcome reports what a successful conversion did to the file.
type Outcome int

const (
	// OutcomeModified means the file content was replaced on disk.
	OutcomeModified Outcome = iota
	// OutcomeNoChange means the generated content matched the original and
	// the file was left untouched.
	OutcomeNoChange
)

// String renders the outcome for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeModified:
		return "modified"
	case OutcomeNoChange:
		return "no-change"
	default:
		return "unknown"
	}
}

// Generator is the single capability the converter needs: prompt in,
// generated text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Converter drives the generate-compare-replace cycle for one file at a time.
type Converter struct {
	generator   Generator
	maxAttempts int
	tempSuffix  string
	sleeper     func(time.Duration)
	logger      *slog.Logger
}

// Option customizes the converter.
type Option func(*Converter)

// WithMaxAttempts overrides the attempt budget (defaults to 4).
func WithMaxAttempts(attempts int) Option {
	return func(c *Converter) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithTempSuffix overrides the temporary sibling suffix used for replacement.
func WithTempSuffix(suffix string) Option {
	return func(c *Converter) {
		if suffix != "" {
			c.tempSuffix = suffix
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Converter) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// WithLogger attaches a logger for per-attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a converter around the supplied generator.
func New(generator Generator, opts ...Option) *Converter {
	c := &Converter{
		generator:   generator,
		maxAttempts: defaultMaxAttempts,
		tempSuffix:  fileutil.DefaultTempSuffix,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert reads the file at path, asks the generator for its converted form,
// and replaces the file when the result differs from the original. Generation
// failures are retried up to the attempt budget; every attempt failing is an
// ErrExhausted error and the file is left untouched.
func (c *Converter) Convert(ctx context.Context, path string) (Outcome, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return OutcomeNoChange, services.Wrap(services.ErrNotFound, "convert", "read", path, err)
		}
		return OutcomeNoChange, services.Wrap(services.ErrTransient, "convert", "read", path, err)
	}

	prompt := gemini.BuildConversionRequest(path, string(original))

	generated, err := c.generateWithRetry(ctx, path, prompt)
	if err != nil {
		return OutcomeNoChange, err
	}

	if strings.TrimSpace(generated) == strings.TrimSpace(string(original)) {
		return OutcomeNoChange, nil
	}

	if err := fileutil.ReplaceAtomic(path, []byte(generated), c.tempSuffix); err != nil {
		return OutcomeNoChange, services.Wrap(services.ErrTransient, "convert", "replace", path, err)
	}
	return OutcomeModified, nil
}

func (c *Converter) generateWithRetry(ctx context.Context, path, prompt string) (string, error) {
	attempts := c.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		generated, err := c.generator.Generate(ctx, prompt)
		if err == nil {
			return generated, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
		c.logger.Warn("conversion attempt failed",
			logging.String(logging.FieldItem, path),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(err))
		if attempt < attempts {
			if err := c.sleep(ctx, backoffDelay(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", services.Wrap(services.ErrExhausted, "convert", "generate", path, lastErr)
}

// backoffDelay returns the pause between attempt k and attempt k+1:
// 1.5^(k-1) + k*0.1 seconds.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	seconds := math.Pow(1.5, float64(attempt-1)) + float64(attempt)*0.1
	return time.Duration(seconds * float64(time.Second))
}

func (c *Converter) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
