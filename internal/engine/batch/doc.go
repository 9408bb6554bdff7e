// Package batch splits large file lists into fixed-size batches.
//
// The expiry sweep walks every entry file in a store and reads its header.
// Stores can hold hundreds of thousands of files, so the walk result is cut
// into batches that are scanned with bounded concurrency:
//   - Configurable batch size (default 100 paths per batch)
//   - Bounded parallelism through errgroup
//   - Progress callbacks for logging
//   - Context-aware cancellation between batches
package batch
