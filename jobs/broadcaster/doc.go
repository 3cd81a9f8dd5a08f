// Package broadcaster is a background job that scans the cycle journal for
// undelivered reports and publishes them to an external sink such as
// Kafka.
package broadcaster
