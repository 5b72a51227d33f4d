// Package notify implements the completion handlers for Sonarr and
// Radarr instances: refresh-mode library rescans and import-mode
// reconciliation of delivered files against the instance's download
// queue, including the delayed-import hide/unhide convention for
// multi-file deliveries.
package notify

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Paths holds the reconstructed delivery paths. The basenames are the
// first path segment of the delivered path under its configured root,
// so a file deep inside a season folder resolves to the folder that
// was delivered, not the file itself.
type Paths struct {
	SourceBase string
	DestBase   string
	AbsSource  string
	AbsDest    string
}

// RootMismatchError reports a delivered path whose reconstructed root
// does not prefix the path, which signals a root misconfiguration.
type RootMismatchError struct {
	Path string
	Root string
}

func (e *RootMismatchError) Error() string {
	return fmt.Sprintf("path %q is not under configured root %q", e.Path, e.Root)
}

// ReconstructPaths derives the delivered item under each root and
// validates that the reconstruction actually prefixes the supplied
// paths.
func ReconstructPaths(sourcePath, destPath, intermediateRoot, importRoot string) (Paths, error) {
	sourceBase, err := firstSegment(sourcePath, intermediateRoot)
	if err != nil {
		return Paths{}, &RootMismatchError{Path: sourcePath, Root: intermediateRoot}
	}
	destBase, err := firstSegment(destPath, importRoot)
	if err != nil {
		return Paths{}, &RootMismatchError{Path: destPath, Root: importRoot}
	}

	p := Paths{
		SourceBase: sourceBase,
		DestBase:   destBase,
		AbsSource:  filepath.Join(intermediateRoot, sourceBase),
		AbsDest:    filepath.Join(importRoot, destBase),
	}

	if !strings.HasPrefix(sourcePath, p.AbsSource) {
		return Paths{}, &RootMismatchError{Path: sourcePath, Root: intermediateRoot}
	}
	if !strings.HasPrefix(destPath, p.AbsDest) {
		return Paths{}, &RootMismatchError{Path: destPath, Root: importRoot}
	}

	return p, nil
}

// firstSegment returns the first path element of path relative to root.
func firstSegment(path, root string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes root %q", path, root)
	}
	parts := strings.Split(rel, string(filepath.Separator))
	return parts[0], nil
}
