// Package snapshot stores the collected allow-list dataset between runs.
//
// A snapshot is a single JSON file written atomically (temporary file, fsync,
// rename). It records the source it was collected from and is ignored once
// its last check is older than the configured TTL.
package snapshot
