package fetcher

import (
	"archive/zip"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP unpacks an archive into destDir and returns the extracted file
// paths. Directory entries are created but not returned.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer archive.Close() //nolint:errcheck

	var files []string
	for _, entry := range archive.File {
		dest, err := entryDest(destDir, entry.Name)
		if err != nil {
			return files, err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return files, eris.Wrapf(err, "zip: create dir %s", dest)
			}
			continue
		}

		if err := unpackEntry(entry, dest); err != nil {
			return files, err
		}
		files = append(files, dest)
	}

	return files, nil
}

// entryDest maps an archive member name under destDir, rejecting names that
// would escape it.
func entryDest(destDir, name string) (string, error) {
	dest := filepath.Join(destDir, name)
	rel, err := filepath.Rel(destDir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: entry %q escapes the extraction dir", name)
	}
	return dest, nil
}

func unpackEntry(entry *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrapf(err, "zip: create parent for %s", dest)
	}

	rc, err := entry.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", entry.Name)
	}
	defer rc.Close() //nolint:errcheck

	if _, err := saveTo(dest, rc); err != nil {
		return eris.Wrapf(err, "zip: extract %s", entry.Name)
	}
	return nil
}

// FindByExt returns the first file under dir with the given extension.
// Shapefile archives bundle sidecar files, often inside a top-level folder,
// so callers locate the member they need by extension at any depth.
func FindByExt(dir, ext string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ext) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "zip: scan %s", dir)
	}
	if found == "" {
		return "", eris.Errorf("zip: no %s file under %s", ext, dir)
	}
	return found, nil
}
