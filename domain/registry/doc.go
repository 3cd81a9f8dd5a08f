// Package registry tracks the threads that retire addresses.
//
// Reference protocol: a record starts with one reference for the registry
// and one for its owner. FindByAddress, FindByID and Acquire hand out one
// more. Cleanup drops the registry's; the owner drops its own when it
// leaves. Whoever drops the last reference returns the record to the pool.
package registry
