// Package status publishes ephemeral job progress records for polling
// clients, backed by Redis in production and an in-process map otherwise.
package status
