// Package selection chooses the final clip set from scored candidates. The
// engine is pure: it reads candidates and a config and returns clips, so
// every relaxation rule is unit-testable without a database or a video.
package selection
