package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// manifestFile names the active-index pointer inside the chromem directory.
// chromem only loads subdirectories, so the file does not disturb it.
const manifestFile = "active.json"

// readManifest returns the active index, or ok=false when none was built.
func readManifest(dir string) (info IndexInfo, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return IndexInfo{}, false, nil
		}
		return IndexInfo{}, false, fmt.Errorf("reading index manifest: %w", err)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return IndexInfo{}, false, fmt.Errorf("decoding index manifest: %w", err)
	}
	return info, info.Collection != "", nil
}

// writeManifest replaces the manifest atomically: readers see the old file
// or the new one, never a partial write.
func writeManifest(dir string, info IndexInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, manifestFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating manifest temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing manifest: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, manifestFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("activating manifest: %w", err)
	}
	return nil
}
