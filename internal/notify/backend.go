package notify

import "context"

// Backend abstracts the Sonarr/Radarr operations the reconciler and
// refresh flow drive. The two services share the v3 API shape but
// differ in import quirks, which the two boolean capabilities expose.
type Backend interface {
	// Kind returns "sonarr" or "radarr".
	Kind() string

	// Queue returns a snapshot of the instance's download queue.
	Queue(ctx context.Context) ([]QueueRecord, error)

	// ImportScan asks the instance to import the completed download at
	// path. A non-empty downloadID binds the scan to that grab.
	ImportScan(ctx context.Context, path, downloadID string) error

	// RemoveQueueItem removes one queue record without blocklisting.
	RemoveQueueItem(ctx context.Context, id int64) error

	// Refresh triggers a library rescan matched from the delivered
	// basename, optionally followed by a rename pass.
	Refresh(ctx context.Context, basename string, renameFiles bool) error

	// SuppressDirImport reports whether a directory delivery with a
	// matched downloadId should skip the import trigger. Sonarr imports
	// named directories automatically and triggering a scan on top of
	// that double-imports.
	SuppressDirImport() bool

	// RemoveOnExtensionMismatch reports whether an extension-mismatched
	// file match must be removed from the queue. Radarr refuses
	// ID-bound imports when extensions differ, leaving the queue entry
	// stuck indefinitely unless it is removed.
	RemoveOnExtensionMismatch() bool
}
