// Package services defines shared utilities consumed by the pipeline stages
// and the external transcoder integration.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and relative file paths
//     for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     fatal (discovery, staging total failure) or advisory (capacity).
//
// Per-file conversion failures are not errors: they travel as values in
// media.JobResult so a single bad file never aborts a batch.
package services
