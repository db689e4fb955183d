package usecase

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/semmidev/stowaway/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

type fixedClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

type remoteFile struct {
	content string
	age     time.Duration
}

// fakeHost simulates the remote side: a tiny filesystem plus a command
// interpreter for the handful of commands the use cases send.
type fakeHost struct {
	mu       sync.Mutex
	files    map[string]remoteFile
	commands []string
	// stderr maps a command prefix to the lines it writes to stderr.
	stderr map[string][]string
	// runErr maps a command prefix to a transport error.
	runErr map[string]error
	// sizes is consumed one entry per stat call when set.
	sizes []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		files:  map[string]remoteFile{},
		stderr: map[string][]string{},
		runErr: map[string]error{},
	}
}

func (h *fakeHost) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.commands...)
}

func (h *fakeHost) run(command string) (domain.CommandOutput, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.commands = append(h.commands, command)

	for prefix, err := range h.runErr {
		if strings.HasPrefix(command, prefix) {
			return domain.CommandOutput{}, err
		}
	}
	for prefix, lines := range h.stderr {
		if strings.HasPrefix(command, prefix) {
			return domain.CommandOutput{Stderr: lines, ExitStatus: 1}, nil
		}
	}

	args, err := shellquote.Split(command)
	if err != nil || len(args) == 0 {
		return domain.CommandOutput{Stderr: []string{"parse error"}}, nil
	}

	switch {
	case args[0] == "find":
		h.find(args[1:])
	case args[0] == "stat":
		if len(h.sizes) > 0 {
			size := h.sizes[0]
			h.sizes = h.sizes[1:]
			return domain.CommandOutput{Stdout: []string{size}}, nil
		}
		f, ok := h.files[args[len(args)-1]]
		if !ok {
			return domain.CommandOutput{Stderr: []string{"stat: cannot stat"}, ExitStatus: 1}, nil
		}
		return domain.CommandOutput{Stdout: []string{strconv.Itoa(len(f.content))}}, nil
	case len(args) > 3 && args[0] == "sudo" && args[3] == "pg_dumpall":
		h.files[args[len(args)-1]] = remoteFile{content: "-- PostgreSQL database cluster dump"}
	}

	return domain.CommandOutput{}, nil
}

// find implements: <root> -type f -name <pattern> -ctime +<days> -delete
func (h *fakeHost) find(args []string) {
	root := path.Clean(args[0])
	var pattern string
	days := -1
	for i := 1; i < len(args)-1; i++ {
		switch args[i] {
		case "-name":
			pattern = args[i+1]
		case "-ctime":
			days, _ = strconv.Atoi(strings.TrimPrefix(args[i+1], "+"))
		}
	}

	for name, f := range h.files {
		if path.Dir(name) != root && !strings.HasPrefix(name, root+"/") {
			continue
		}
		if ok, _ := path.Match(pattern, path.Base(name)); !ok {
			continue
		}
		if int(f.age/(24*time.Hour)) > days {
			delete(h.files, name)
		}
	}
}

func (h *fakeHost) has(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.files[name]
	return ok
}

type fakeSession struct {
	host    *fakeHost
	channel *fakeChannel
	openErr error
	closed  int
}

func (s *fakeSession) Run(ctx context.Context, command string) (domain.CommandOutput, error) {
	return s.host.run(command)
}

func (s *fakeSession) OpenTransferChannel() (domain.TransferChannel, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.channel, nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeChannel struct {
	host        *fakeHost
	downloadErr error
	downloads   []string
	closed      int
}

type fakeInfo struct {
	name string
	size int64
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return i.size }
func (i fakeInfo) Mode() fs.FileMode  { return 0644 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return false }
func (i fakeInfo) Sys() interface{}   { return nil }

func (c *fakeChannel) Stat(ctx context.Context, remotePath string) (os.FileInfo, error) {
	c.host.mu.Lock()
	defer c.host.mu.Unlock()
	f, ok := c.host.files[remotePath]
	if !ok {
		return nil, os.ErrNotExist
	}
	return fakeInfo{name: path.Base(remotePath), size: int64(len(f.content))}, nil
}

func (c *fakeChannel) Download(ctx context.Context, remotePath, localPath string) error {
	c.downloads = append(c.downloads, remotePath)
	if c.downloadErr != nil {
		return c.downloadErr
	}

	c.host.mu.Lock()
	f, ok := c.host.files[remotePath]
	c.host.mu.Unlock()
	if !ok {
		return os.ErrNotExist
	}
	return os.WriteFile(localPath, []byte(f.content), 0644)
}

func (c *fakeChannel) DownloadTree(ctx context.Context, remotePath, localPath string) error {
	return errors.New("not used")
}

func (c *fakeChannel) Close() error {
	c.closed++
	return nil
}

type fakeConnector struct {
	session *fakeSession
	err     error
	calls   int
}

func (c *fakeConnector) Connect(ctx context.Context, params domain.ConnectionParams) (domain.Session, error) {
	c.calls++
	if c.err != nil {
		return nil, &domain.ConnectionError{Host: params.Host, Port: params.Port, Err: c.err}
	}
	return c.session, nil
}

// fakeCopier writes one file into the snapshot, then optionally fails,
// leaving a partial copy behind like an interrupted scp.
type fakeCopier struct {
	err   error
	calls int
	dirs  []string
}

func (c *fakeCopier) CopyTree(ctx context.Context, params domain.ConnectionParams, remotePath, localDir string) error {
	c.calls++
	c.dirs = append(c.dirs, localDir)

	dest := filepath.Join(localDir, path.Base(remotePath))
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dest, "logo.png"), []byte("png"), 0644); err != nil {
		return err
	}
	return c.err
}
