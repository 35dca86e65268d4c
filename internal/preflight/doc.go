// Package preflight provides readiness checks for the filesystem paths and
// external binaries a conversion run depends on.
//
// These checks run in two contexts:
//   - "flacbatch convert" calls RunAll before scanning; any failure aborts the
//     run before a single file is touched.
//   - "flacbatch preflight" and "flacbatch deps" render the individual results.
//
// Staging checks are skipped when staging is disabled.
package preflight
