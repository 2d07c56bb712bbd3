package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileProvider loads secrets from individual files in a directory.
type FileProvider struct {
	dir string

	mu       sync.RWMutex
	cache    map[string]string
	onChange []func()

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
}

// NewFileProvider creates a provider for dir. With watch set, writes,
// creates, renames and removals in dir clear the cache and run the
// OnChange callbacks.
func NewFileProvider(dir string, watch bool) (*FileProvider, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve secrets dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", abs)
	}

	p := &FileProvider{
		dir:    abs,
		cache:  make(map[string]string),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	if !watch {
		close(p.done)
		return p, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(abs); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch secrets dir: %w", err)
	}
	p.watcher = watcher
	go p.watchLoop()

	slog.Info("watching secrets directory", "path", abs)
	return p, nil
}

// OnChange registers fn to run after a watched change clears the cache.
func (p *FileProvider) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Get reads <dir>/<name>, trimming surrounding whitespace.
func (p *FileProvider) Get(_ context.Context, name string) (string, error) {
	p.mu.RLock()
	if value, ok := p.cache[name]; ok {
		p.mu.RUnlock()
		return value, nil
	}
	p.mu.RUnlock()

	path, err := p.path(name)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("secret file not found: %s", name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", name)
	}
	if mode := info.Mode().Perm(); mode != 0o600 && mode != 0o400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, mode)
	}

	// #nosec G304 - path is confined to dir above
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	value := strings.TrimSpace(string(data))

	p.mu.Lock()
	p.cache[name] = value
	p.mu.Unlock()
	return value, nil
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// Supports reports whether a regular file named name exists.
func (p *FileProvider) Supports(name string) bool {
	path, err := p.path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Refresh clears the cache so the next Get re-reads from disk.
func (p *FileProvider) Refresh() {
	p.mu.Lock()
	p.cache = make(map[string]string)
	callbacks := append([]func(){}, p.onChange...)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Close stops the watcher.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	select {
	case <-p.stopCh:
		return nil
	default:
	}
	close(p.stopCh)
	err := p.watcher.Close()
	<-p.done
	return err
}

func (p *FileProvider) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	return filepath.Join(p.dir, name), nil
}

func (p *FileProvider) watchLoop() {
	defer close(p.done)
	const changed = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&changed == 0 {
				continue
			}
			slog.Debug("secret file changed, clearing cache",
				"file", filepath.Base(event.Name),
				"op", event.Op.String(),
			)
			p.Refresh()

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("secrets watcher error", "error", err)

		case <-p.stopCh:
			return
		}
	}
}
