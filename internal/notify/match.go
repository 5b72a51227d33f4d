package notify

import (
	"path/filepath"
	"strings"
)

// Match is the result of scanning a queue snapshot for a delivered item.
type Match struct {
	Found bool

	// ExtensionMatch reports whether the delivered file's extension
	// equals the queue record's. It is always true for directory
	// deliveries, which match on the exact basename.
	ExtensionMatch bool

	// Record is the first matching queue record. First match wins;
	// later candidates are not examined.
	Record QueueRecord
}

// QueueRecord is the subset of a queue entry the matcher consumes.
type QueueRecord struct {
	ID         int64
	Title      string
	DownloadID string
	OutputPath string
}

// MatchQueue scans queue records in order for the delivered basename.
// Directory deliveries require an exact basename match. File deliveries
// compare extension-stripped basenames so a remuxed container still
// matches its queue entry, with ExtensionMatch recording whether the
// extensions agreed.
func MatchQueue(records []QueueRecord, destBase string, isDir bool) Match {
	match := Match{ExtensionMatch: true}

	for _, record := range records {
		// outputPath should be present but sometimes isn't
		if record.OutputPath == "" {
			continue
		}
		candidate := filepath.Base(record.OutputPath)

		if isDir {
			if destBase != candidate {
				continue
			}
		} else {
			if stripExt(destBase) != stripExt(candidate) {
				continue
			}
			if destBase != candidate {
				match.ExtensionMatch = false
			}
		}

		match.Found = true
		match.Record = record
		break
	}

	return match
}

// stripExt removes the final extension from a basename.
func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
