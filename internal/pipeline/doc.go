// Package pipeline defines the stage order and runs the worker pool that
// drives jobs from ingestion to publication.
package pipeline
