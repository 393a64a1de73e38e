// Package flows contains the orchestrators behind every Engine session operation.
//
// Each flow function (RunIssue, RunRotate, RunRevokeFromCredential, RunRevokeLineage,
// RunListActive) accepts a typed dependency struct and returns a classified result.
// The Engine maps results onto public errors, metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate the credential manager and the session store. They do
// not own either; ownership stays with the Engine. All I/O goes through the
// dependency structs.
package flows
