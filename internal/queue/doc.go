// Package queue routes pipeline stages onto tiered queues and brokers
// tasks through sqlite with lease-based delivery.
package queue
