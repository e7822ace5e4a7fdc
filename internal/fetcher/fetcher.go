package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Fetcher downloads remote files. Implementations exist for HTTP(S) and
// anonymous FTP, the two schemes coastline archives are published under.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL into path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// saveTo streams r into path through a temp file in the same directory, so
// an interrupted transfer never leaves a truncated file under the final name
// for a later run to mistake for a complete archive.
func saveTo(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part*")
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: create temp file for %s", path)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return n, eris.Wrapf(err, "fetcher: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrapf(err, "fetcher: flush %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrapf(err, "fetcher: move %s into place", path)
	}
	return n, nil
}
