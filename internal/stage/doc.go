// Package stage defines the pipeline stage contract and the shared runner
// that moves jobs through the status ladder, publishes progress, and hands
// failures to the retry policy.
package stage
