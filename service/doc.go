// Package service runs reclamation cycles.
//
// A Reclaimer owns the thread registry, the retired-address index and the
// pending queue of addresses spilled from full or departing threads. It is
// the only place where the allocator boundary is called: an address is
// released only after a scan has failed to report it.
//
// It is decoupled from transports; the gRPC admin API and the background
// jobs drive it through Collect and Stats.
package service
