// Package jobs defines the pipeline job model, its status ladder, and the
// sqlite persistence layer shared by the daemon, the broker, and the API.
package jobs
