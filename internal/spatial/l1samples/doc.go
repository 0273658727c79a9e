// Package l1samples is the interop boundary of the spatial pointer
// pipeline. It decodes native callback batches (fixed 60-byte records),
// UDP datagrams (a uint16 count followed by records) and serial bridge
// lines (JSON) into spatial.RawSample values.
//
// Short native records are zero-filled rather than rejected; nothing in
// this package returns a fault for a single bad record.
package l1samples
