// Package convert fans source files out to a bounded pool of transcoder
// workers and streams back one result per file.
//
// Output paths always derive from the original input root, so a staged copy
// and its source land at the same destination. Results arrive in completion
// order; callers that need input order re-sort by relative path.
package convert
