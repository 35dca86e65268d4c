// Package pipeline runs one batch conversion end to end.
//
// Preflight scans the input tree and, when staging is enabled, checks free
// space on the staging filesystem. Execute locks the destination, stages,
// converts, and aggregates, and always removes the per-run staging directory
// on the way out, including when a stage panics. All per-run state lives in a
// RunContext created by the caller.
package pipeline
