package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher downloads files over anonymous FTP. Some NOAA and Census
// coastline mirrors still publish archives only that way.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates an FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// splitFTPAddr breaks an ftp:// URL into a dialable address and the remote
// file path, defaulting the port to 21.
func splitFTPAddr(rawURL string) (addr string, remote string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrapf(err, "fetcher: parse ftp url %s", rawURL)
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" {
		return "", "", eris.Errorf("fetcher: ftp url %s has no file path", rawURL)
	}

	addr = u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "21")
	}
	return addr, u.Path, nil
}

// connect dials and logs in anonymously. The mirrors accept no other login.
func (f *FTPFetcher) connect(ctx context.Context, addr string) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: ftp dial %s", addr)
	}
	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "fetcher: ftp login %s", addr)
	}
	return conn, nil
}

// ftpFile keeps the control connection open for the life of the transfer;
// closing the reader finishes the transfer and disconnects.
type ftpFile struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (f *ftpFile) Read(p []byte) (int, error) {
	return f.resp.Read(p)
}

func (f *ftpFile) Close() error {
	err := f.resp.Close()
	if quitErr := f.conn.Quit(); err == nil {
		err = quitErr
	}
	if err != nil {
		return eris.Wrap(err, "fetcher: close ftp transfer")
	}
	return nil
}

// Download retrieves the file behind an ftp:// URL. The caller must close
// the returned reader to release the connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	addr, remote, err := splitFTPAddr(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("fetcher: ftp transfer",
		zap.String("addr", addr),
		zap.String("path", remote),
	)

	conn, err := f.connect(ctx, addr)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Retr(remote)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "fetcher: ftp retrieve %s", remote)
	}
	return &ftpFile{resp: resp, conn: conn}, nil
}

// DownloadToFile retrieves the FTP URL into path. Returns bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	return saveTo(path, rc)
}
