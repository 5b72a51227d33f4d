package notify

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// HiddenSuffix is appended to delivered files to hide them from the
// media manager's automatic import while a multi-file delivery is
// still in flight.
const HiddenSuffix = ".tmp"

// CountVisibleFiles counts entries under root whose name does not start
// with a dot and contains an extension separator, mirroring what the
// media manager would see as deliverable content. A missing root counts
// as zero.
func CountVisibleFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if name[0] != '.' && strings.Contains(name[1:], ".") {
			count++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("counting files under %s: %w", root, err)
	}
	return count, nil
}

// Hide renames path to path + ".tmp" and returns the hidden name. If
// the sentinel already exists the rename is skipped, since a second
// notifier watching the same library may have hidden it first.
func Hide(path string) (string, error) {
	hidden := path + HiddenSuffix
	if _, err := os.Stat(hidden); err == nil {
		return hidden, nil
	}
	if err := os.Rename(path, hidden); err != nil {
		return "", fmt.Errorf("hiding %s: %w", path, err)
	}
	return hidden, nil
}

// UnhideAll restores every hidden sentinel under root to its original
// name and normalizes the root's permissions so the media manager can
// move the files out.
func UnhideAll(root string) ([]string, error) {
	var hidden []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, HiddenSuffix) {
			hidden = append(hidden, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s for hidden files: %w", root, err)
	}

	restored := make([]string, 0, len(hidden))
	for _, path := range hidden {
		original := strings.TrimSuffix(path, HiddenSuffix)
		if err := os.Rename(path, original); err != nil {
			return restored, fmt.Errorf("restoring %s: %w", path, err)
		}
		restored = append(restored, original)
	}

	if err := os.Chmod(root, 0o777); err != nil {
		return restored, fmt.Errorf("normalizing permissions on %s: %w", root, err)
	}
	return restored, nil
}
