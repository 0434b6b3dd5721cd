package util

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	return false, err
}

// ExtractArchive unpacks a zip archive into destDir and returns the
// on-disk paths of the extracted files, each under destDir. Entries
// escaping destDir are rejected.
func ExtractArchive(archivePath, destDir string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	paths := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		rel := filepath.Clean(zf.Name)
		if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			return nil, fmt.Errorf("archive entry %q escapes destination", zf.Name)
		}
		target := filepath.Join(destDir, rel)
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := copyFromArchive(zf, target); err != nil {
			return nil, err
		}
		paths = append(paths, target)
	}
	return paths, nil
}

func copyFromArchive(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return err
	}
	return nil
}
