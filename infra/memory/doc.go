// Package memory provides the low-level primitives the reclaimer is built
// on: the per-thread RetireRing, the lock-free ReuseStack backing record
// reuse, typed Pools for scratch buffers, and the cycle Clock and Heartbeat
// used to detect stalled threads.
//
// The package has no knowledge of addresses or threads; callers
// instantiate the generic types with their own element types.
package memory
