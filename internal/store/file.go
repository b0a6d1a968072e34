package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/natefinch/atomic"

	"github.com/kingrea/ideaboard/internal/idea"
)

// document is the on-disk shape of the file store.
type document struct {
	Version int         `json:"version"`
	Ideas   []idea.Idea `json:"ideas"`
}

const documentVersion = 1

// FileStore keeps ideas in a JSON document. Writes replace the file
// atomically; edits made by other processes are picked up by a watcher and
// pushed to subscribers.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	ideas   []idea.Idea
	last    []byte
	hub     *hub
	opts    options
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// OpenFile loads (or creates) the document at path and starts watching it.
func OpenFile(path string, opts ...Option) (*FileStore, error) {
	o := buildOptions(opts)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure data dir: %w", err)
	}
	s := &FileStore{
		path: path,
		hub:  newHub(o.capacity, o.logger),
		opts: o,
		done: make(chan struct{}),
	}
	if _, err := s.reload(false); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: create watcher: %w", err)
	}
	// Watch the directory: atomic writes replace the file inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("store: watch %s: %w", filepath.Dir(path), err)
	}
	s.watcher = watcher
	s.wg.Add(1)
	go s.watch()
	return s, nil
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

// Subscribe implements Store.
func (s *FileStore) Subscribe(ctx context.Context, project string) (Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Subscription{}, ErrClosed
	}
	return s.hub.subscribe(ctx, project, idea.Clone(s.ideas)), nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context, project string) ([]idea.Idea, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.ideas, project), nil
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, item idea.Idea) (idea.Idea, error) {
	if err := ctx.Err(); err != nil {
		return idea.Idea{}, persistenceError("put", item.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return idea.Idea{}, persistenceError("put", item.ID, ErrClosed)
	}
	next := idea.Clone(s.ideas)
	idx := idea.Index(next, item.ID)
	var existing *idea.Idea
	if item.ID != "" && idx >= 0 {
		existing = &next[idx]
	}
	stored, err := s.opts.prepare(item, existing)
	if err != nil {
		return idea.Idea{}, err
	}
	if existing != nil {
		next[idx] = stored
	} else {
		next = append(next, stored)
	}
	if err := s.writeLocked(next); err != nil {
		return idea.Idea{}, persistenceError("put", stored.ID, err)
	}
	return stored, nil
}

// Update implements Store.
func (s *FileStore) Update(ctx context.Context, id string, patch idea.Patch) error {
	if err := ctx.Err(); err != nil {
		return persistenceError("update", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return persistenceError("update", id, ErrClosed)
	}
	idx := idea.Index(s.ideas, id)
	if idx < 0 {
		return persistenceError("update", id, ErrNotFound)
	}
	next := idea.Clone(s.ideas)
	updated := patch.Apply(next[idx])
	updated.UpdatedAt = s.opts.now().UTC()
	next[idx] = updated
	if err := s.writeLocked(next); err != nil {
		return persistenceError("update", id, err)
	}
	return nil
}

// Close stops the watcher and ends every subscription.
func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	s.hub.closeAll()
	return err
}

// writeLocked persists next and, on success, makes it the current state.
func (s *FileStore) writeLocked(next []idea.Idea) error {
	data, err := encodeDocument(next)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return err
	}
	s.ideas = next
	s.last = data
	s.hub.publish(idea.Clone(next))
	return nil
}

// reload reads the document from disk and, when it differs from the last
// state this store wrote or read, replaces the in-memory ideas. The read
// happens under s.mu so a concurrent Put or Update cannot be rolled back
// by an older copy of the file. With publish set the new state is fanned
// out before the lock is released.
func (s *FileStore) reload(publish bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if bytes.Equal(data, s.last) && s.ideas != nil {
		return false, nil
	}
	ideas, err := decodeDocument(data)
	if err != nil {
		return false, fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	s.ideas = ideas
	s.last = data
	if publish {
		s.hub.publish(idea.Clone(ideas))
	}
	return true, nil
}

func (s *FileStore) watch() {
	defer s.wg.Done()
	target := filepath.Clean(s.path)
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if _, err := s.reload(true); err != nil {
				s.opts.logf("store: reload after %s: %v", event.Op, err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.opts.logf("store: watch %s: %v", s.path, err)
		}
	}
}

func encodeDocument(ideas []idea.Idea) ([]byte, error) {
	if ideas == nil {
		ideas = []idea.Idea{}
	}
	encoded, err := json.MarshalIndent(document{Version: documentVersion, Ideas: ideas}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(encoded, '\n'), nil
}

func decodeDocument(data []byte) ([]idea.Idea, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []idea.Idea{}, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Ideas == nil {
		doc.Ideas = []idea.Idea{}
	}
	return doc.Ideas, nil
}
