package util

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTestArchive(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()
	archivePath := filepath.Join(dir, "bundle.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return archivePath
}

func TestExtractArchive(t *testing.T) {
	t.Run("success - files are extracted under the destination", func(t *testing.T) {
		// arrange
		dir := t.TempDir()
		archivePath := writeTestArchive(t, dir, map[string]string{
			"index.html":    "<html></html>",
			"css/style.css": "body {}",
			"js/app.js":     "console.log(1)",
		})
		destDir := filepath.Join(dir, "out")

		// act
		paths, err := ExtractArchive(archivePath, destDir)

		// assert
		assert.NoError(t, err)
		assert.Len(t, paths, 3)
		assert.Contains(t, paths, filepath.Join(destDir, "index.html"))
		for _, p := range paths {
			_, err := os.Stat(p)
			assert.NoError(t, err)
		}
		b, err := os.ReadFile(filepath.Join(destDir, "css", "style.css"))
		assert.NoError(t, err)
		assert.Equal(t, "body {}", string(b))
	})
	t.Run("failure - entry escaping destination is rejected", func(t *testing.T) {
		// arrange
		dir := t.TempDir()
		archivePath := writeTestArchive(t, dir, map[string]string{
			"../evil.txt": "nope",
		})

		// act
		_, err := ExtractArchive(archivePath, filepath.Join(dir, "out"))

		// assert
		assert.Error(t, err)
	})
}
