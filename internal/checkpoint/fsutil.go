package checkpoint

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// newOSFS roots an fs.FS at dir on the real filesystem.
func newOSFS(dir string) fs.FS {
	if dir == "" {
		dir = "checkpoints"
	}
	return os.DirFS(dir)
}

type metadataFile struct {
	path    string
	modTime time.Time
}

// findMetadataFiles walks stageDir within fsys for files named
// metadata.json or metadata.yaml (or .yml), at any depth.
func findMetadataFiles(fsys fs.FS, stageDir string) ([]metadataFile, error) {
	var out []metadataFile
	err := fs.WalkDir(fsys, stageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		if name != "metadata.json" && name != "metadata.yaml" && name != "metadata.yml" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, metadataFile{path: path, modTime: info.ModTime()})
		return nil
	})
	return out, err
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || err == fs.ErrNotExist
}
