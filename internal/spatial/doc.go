// Package spatial holds the shared vocabulary of the spatial pointer
// pipeline: raw samples from the tracking source, canonical phases and
// events delivered to the consumer device, and the error taxonomy.
//
// The pipeline is split into layers, leaves first:
//
//	l1samples  interop codec for native batches
//	l2slots    raw identifier → slot assignment
//	l3phases   phase inference (implicit Began / Cancelled)
//	l4delivery per-slot queues and the once-per-tick delivery driver
//	l5device   consumer device abstraction
//
// Dependency rule: a layer may depend on lower layers and on this
// package, never on a higher layer.
package spatial
