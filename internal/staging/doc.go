// Package staging copies source files into a per-run local cache before
// conversion and removes that cache afterwards.
//
// Stager runs a bounded copy pool, independent of the conversion pool, and
// preserves each file's path relative to the original input root so staging
// never changes the output layout. Cleanup helpers remove the per-run tree and
// sweep run directories left behind by crashed runs.
package staging
