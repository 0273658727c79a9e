// Package l4delivery holds the per-slot event queues and the delivery
// driver that drains them once per consumer update.
//
// The driver is the only writer of PointerState. Each tick it delivers at
// most one event per slot, so every phase is observable for at least one
// full update, and inserts the follow-ups the consumer expects but the
// source never sends: a Moved after Began and a None after Ended or
// Cancelled.
//
// Dependency rule: l4delivery may import spatial and monitoring; it never
// imports l2slots or l3phases. Slot release is the pipeline's job.
package l4delivery
