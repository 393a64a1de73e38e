// Package security builds a redacted summary of the engine's security
// posture for startup logs and configuration checks.
package security
