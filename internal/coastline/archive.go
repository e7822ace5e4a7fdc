package coastline

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/fetcher"
)

// Fetch downloads a remote coastline source into destDir and returns the
// local path of the usable geometry file. ZIP archives are extracted and
// searched for a shapefile member, then a GeoJSON one. A nil Fetcher picks
// the transport from the URL scheme.
func Fetch(ctx context.Context, f fetcher.Fetcher, rawURL, destDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "coastline: parse source url %s", rawURL)
	}
	if f == nil {
		f, err = fetcherFor(u.Scheme)
		if err != nil {
			return "", err
		}
	}

	name := filepath.Base(u.Path)
	if name == "." || name == "/" {
		return "", eris.Errorf("coastline: source url %s has no file name", rawURL)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "coastline: create %s", destDir)
	}

	dest := filepath.Join(destDir, name)
	zap.L().Info("downloading coastline source",
		zap.String("url", rawURL),
		zap.String("dest", dest),
	)
	if _, err := f.DownloadToFile(ctx, rawURL, dest); err != nil {
		return "", eris.Wrapf(err, "coastline: download %s", rawURL)
	}

	if !strings.EqualFold(filepath.Ext(dest), ".zip") {
		return dest, nil
	}

	extractDir := strings.TrimSuffix(dest, filepath.Ext(dest))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "coastline: create %s", extractDir)
	}
	if _, err := fetcher.ExtractZIP(dest, extractDir); err != nil {
		return "", eris.Wrapf(err, "coastline: extract %s", name)
	}

	if shpPath, err := fetcher.FindByExt(extractDir, ".shp"); err == nil {
		return shpPath, nil
	}
	if gjPath, err := fetcher.FindByExt(extractDir, ".geojson"); err == nil {
		return gjPath, nil
	}
	return "", eris.Errorf("coastline: archive %s has no .shp or .geojson member", name)
}

func fetcherFor(scheme string) (fetcher.Fetcher, error) {
	switch scheme {
	case "http", "https":
		return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), nil
	case "ftp":
		return fetcher.NewFTPFetcher(fetcher.FTPOptions{}), nil
	default:
		return nil, eris.Errorf("coastline: unsupported source scheme %q", scheme)
	}
}
