package mirror

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"filehost/internal/filehost"
)

// FTPMirror uploads copies to an FTP server. Each Put opens its own control
// connection, so the mirror is safe for concurrent use by dispatcher workers.
type FTPMirror struct {
	addr     string
	user     string
	password string
	dir      string
	timeout  time.Duration
}

// NewFTPMirror creates an FTP mirror. An empty user logs in anonymously.
func NewFTPMirror(addr, user, password, dir string, timeout time.Duration) *FTPMirror {
	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	return &FTPMirror{
		addr:     addr,
		user:     user,
		password: password,
		dir:      path.Clean("/" + dir),
		timeout:  timeout,
	}
}

func (m *FTPMirror) Name() string { return "ftp" }

// Put stores r under dir/relativePath. The upload goes to a dot-prefixed
// temporary name and is renamed once complete.
func (m *FTPMirror) Put(ctx context.Context, relativePath string, r io.Reader, size int64) error {
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if m.timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(m.timeout))
	}
	conn, err := ftp.Dial(m.addr, opts...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", m.addr, err)
	}
	defer conn.Quit()

	if err := conn.Login(m.user, m.password); err != nil {
		return fmt.Errorf("logging in to %s: %w", m.addr, err)
	}

	target := path.Join(m.dir, relativePath)
	m.makeDirs(conn, path.Dir(target))

	tmp := path.Join(path.Dir(target), ".tmp-"+path.Base(target))
	if err := conn.Stor(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		conn.Delete(tmp)
		return fmt.Errorf("storing %s: %w", target, err)
	}
	if size >= 0 {
		if got, err := conn.FileSize(tmp); err == nil && got != size {
			conn.Delete(tmp)
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, got)
		}
	}
	if err := conn.Rename(tmp, target); err != nil {
		return fmt.Errorf("renaming %s: %w", target, err)
	}
	return nil
}

// makeDirs creates every segment of dir. Servers reject MKD for existing
// directories, so errors are ignored here and surface on STOR instead.
func (m *FTPMirror) makeDirs(conn *ftp.ServerConn, dir string) {
	current := ""
	for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
		if seg == "" {
			continue
		}
		current += "/" + seg
		conn.MakeDir(current)
	}
}

// Compile-time check that FTPMirror implements filehost.Mirror
var _ filehost.Mirror = (*FTPMirror)(nil)
