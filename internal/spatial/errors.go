package spatial

import "errors"

// Recoverable conditions degrade to drop-and-continue; callers count them
// and never propagate them across the producer/consumer boundary.
var (
	// ErrPoolExhausted: more live raw identifiers than slots.
	ErrPoolExhausted = errors.New("pointer slot pool exhausted")
	// ErrMalformedPayload: a native record shorter than the expected layout.
	ErrMalformedPayload = errors.New("malformed native pointer payload")
	// ErrQueueFull: a slot queue reached its depth limit.
	ErrQueueFull = errors.New("pointer slot queue full")
	// ErrUnknownPhase: a raw phase outside the source vocabulary.
	ErrUnknownPhase = errors.New("unknown raw pointer phase")
)

// ErrInvariantViolation marks a programming error in phase inference,
// e.g. Moved delivered before Began. It is not runtime-recoverable.
var ErrInvariantViolation = errors.New("pointer phase invariant violated")
