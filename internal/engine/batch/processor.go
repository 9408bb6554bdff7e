package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Default batch processing configuration.
const (
	// DefaultBatchSize is the default number of items per batch.
	DefaultBatchSize = 100

	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size.
	MaxBatchSize = 10000

	// DefaultConcurrency is the default number of batches processed at once.
	DefaultConcurrency = 4
)

// Common batch processing errors.
var (
	ErrInvalidBatchSize = fmt.Errorf("batch size must be between %d and %d", MinBatchSize, MaxBatchSize)
	ErrNilCallback      = errors.New("batch callback cannot be nil")
)

// Callback processes a single batch of items. batchIndex is 0-based.
type Callback[T any] func(ctx context.Context, batch []T, batchIndex int) error

// ProgressCallback is invoked after each batch completes.
type ProgressCallback func(snapshot ProgressSnapshot)

// Processor cuts a slice into batches and feeds them to a callback.
type Processor[T any] struct {
	batchSize  int
	onProgress ProgressCallback
}

// NewProcessor creates a processor with the given batch size.
func NewProcessor[T any](batchSize int) (*Processor[T], error) {
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	return &Processor[T]{batchSize: batchSize}, nil
}

// NewProcessorWithDefaults creates a processor with DefaultBatchSize.
func NewProcessorWithDefaults[T any]() *Processor[T] {
	return &Processor[T]{batchSize: DefaultBatchSize}
}

// WithProgressCallback sets a progress callback for the processor.
func (p *Processor[T]) WithProgressCallback(callback ProgressCallback) *Processor[T] {
	p.onProgress = callback
	return p
}

// BatchSize returns the configured batch size.
func (p *Processor[T]) BatchSize() int {
	return p.batchSize
}

// Process runs the batches sequentially and stops at the first error.
// An empty items slice is not an error.
func (p *Processor[T]) Process(ctx context.Context, items []T, callback Callback[T]) error {
	if callback == nil {
		return ErrNilCallback
	}

	bounds := p.CalculateBatches(len(items))
	progress := NewProgress(len(items), len(bounds), p.batchSize)

	for batchIndex, b := range bounds {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := items[b[0]:b[1]]
		if err := callback(ctx, batch, batchIndex); err != nil {
			return fmt.Errorf("batch %d failed: %w", batchIndex, err)
		}

		p.report(progress, len(batch))
	}

	return nil
}

// ProcessConcurrent runs up to maxConcurrency batches at once. Every batch
// runs even if another fails; the errors are joined. Cancellation of ctx
// stops scheduling new batches.
func (p *Processor[T]) ProcessConcurrent(
	ctx context.Context,
	items []T,
	callback Callback[T],
	maxConcurrency int,
) error {
	if callback == nil {
		return ErrNilCallback
	}

	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	bounds := p.CalculateBatches(len(items))
	progress := NewProgress(len(items), len(bounds), p.batchSize)

	var g errgroup.Group
	g.SetLimit(maxConcurrency)

	errs := make([]error, len(bounds))
	for batchIndex, b := range bounds {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return errors.Join(append(errs, err)...)
		}

		batch := items[b[0]:b[1]]
		g.Go(func() error {
			if err := callback(ctx, batch, batchIndex); err != nil {
				errs[batchIndex] = fmt.Errorf("batch %d failed: %w", batchIndex, err)
				return nil
			}
			p.report(progress, len(batch))
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// CalculateBatches returns the [start, end) bounds of each batch.
func (p *Processor[T]) CalculateBatches(totalItems int) [][2]int {
	total := totalItems / p.batchSize
	if totalItems%p.batchSize > 0 {
		total++
	}

	batches := make([][2]int, total)
	for i := range total {
		start := i * p.batchSize
		end := min(start+p.batchSize, totalItems)
		batches[i] = [2]int{start, end}
	}

	return batches
}

func (p *Processor[T]) report(progress *Progress, itemsProcessed int) {
	progress.AddProcessed(itemsProcessed)
	if p.onProgress != nil {
		p.onProgress(progress.Snapshot())
	}
}
