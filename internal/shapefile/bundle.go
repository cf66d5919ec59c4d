package shapefile

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ExtractBundle unpacks a zipped shapefile bundle into destDir and returns
// the path of the first .shp found. Bundle layouts vary between data
// releases, so the whole archive is extracted and then searched.
func ExtractBundle(zipPath, destDir string) (string, error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to open bundle %s: %w", zipPath, err)
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := extractEntry(entry, destDir); err != nil {
			return "", err
		}
	}

	shpPath, err := findShapefile(destDir)
	if err != nil {
		return "", err
	}
	return shpPath, nil
}

// findShapefile walks dir for the first .shp file.
func findShapefile(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found == "" && !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".shp") {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan %s for shapefile: %w", dir, err)
	}
	if found == "" {
		return "", fmt.Errorf("no .shp file found in %s", dir)
	}
	return found, nil
}

func extractEntry(entry *zip.File, destDir string) error {
	// Reject entries that would escape the destination directory.
	target := filepath.Join(destDir, filepath.Clean(entry.Name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("bundle entry %s escapes extraction directory", entry.Name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", entry.Name, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open bundle entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return nil
}
