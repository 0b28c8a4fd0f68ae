// Package store persists transcripts as an append-only version history on
// the local filesystem. Every revision of a transcription is its own
// immutable file; the store never rewrites or deletes an existing version.
//
// Layout, per transcription:
//
//	<root>/user_<UserID>/<DD-MM-YYYY>_<TranscriptionID>/
//	    audio.ogg
//	    audio.wav
//	    transcription_v1.txt
//	    transcription_v2.txt
//	    ...
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Handle references one transcription's storage location together with the
// highest version written so far. Handles are immutable values; AppendRevision
// returns an updated copy.
type Handle struct {
	// Dir is the transcription folder, rooted under the store.
	Dir string

	// Version is the highest revision number written through this handle.
	Version int
}

// FileStore is the durable revision store. All methods are safe for
// concurrent use; appends to the same transcription folder are serialised.
type FileStore struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-folder append locks, keyed by Dir
}

// NewFileStore creates a FileStore rooted at the given directory. The root
// is created lazily on first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}
}

// UserDir returns the per-user root directory for userID.
func (s *FileStore) UserDir(userID string) string {
	return filepath.Join(s.root, "user_"+userID)
}

// folderLock returns the append lock for dir, creating it on first use.
func (s *FileStore) folderLock(dir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[dir]
	if !ok {
		l = &sync.Mutex{}
		s.locks[dir] = l
	}
	return l
}

// revisionPath returns the file path encoding the given version number.
func revisionPath(dir string, version int) string {
	return filepath.Join(dir, fmt.Sprintf("transcription_v%d.txt", version))
}

// CreateInitial writes version 1 of a new transcription under
// <root>/user_<userID>/<folder>/ and returns a handle referencing it.
// A write failure is fatal to the operation and surfaces to the caller.
func (s *FileStore) CreateInitial(userID, folder, text string) (Handle, error) {
	dir := filepath.Join(s.UserDir(userID), folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Handle{}, fmt.Errorf("store: create folder %q: %w", dir, err)
	}

	lock := s.folderLock(dir)
	lock.Lock()
	defer lock.Unlock()

	if err := writeVersionFile(revisionPath(dir, 1), text); err != nil {
		return Handle{}, err
	}
	return Handle{Dir: dir, Version: 1}, nil
}

// AppendRevision writes the next version file for h and returns the new
// version number together with the updated handle. An existing version file
// is never overwritten: if a previous failed attempt left a file behind, the
// number is considered consumed and the next one is used.
func (s *FileStore) AppendRevision(h Handle, text string) (int, Handle, error) {
	if h.Dir == "" {
		return 0, h, fmt.Errorf("store: append on zero handle")
	}

	lock := s.folderLock(h.Dir)
	lock.Lock()
	defer lock.Unlock()

	version := h.Version + 1
	for {
		err := writeVersionFile(revisionPath(h.Dir, version), text)
		if err == nil {
			return version, Handle{Dir: h.Dir, Version: version}, nil
		}
		if os.IsExist(err) {
			version++
			continue
		}
		return 0, h, err
	}
}

// SaveAudio stores an audio artifact (e.g. "audio.ogg", "audio.wav") in the
// transcription folder under <root>/user_<userID>/<folder>/.
func (s *FileStore) SaveAudio(userID, folder, name string, data []byte) error {
	dir := filepath.Join(s.UserDir(userID), folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create folder %q: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: write audio %q: %w", path, err)
	}
	return nil
}

// ReadRevision returns the text stored for the given version of h.
func (s *FileStore) ReadRevision(h Handle, version int) (string, error) {
	data, err := os.ReadFile(revisionPath(h.Dir, version))
	if err != nil {
		return "", fmt.Errorf("store: read revision %d: %w", version, err)
	}
	return string(data), nil
}

// writeVersionFile creates path exclusively and writes text to it. The
// O_EXCL flag guarantees an existing version file is never overwritten; the
// caller sees os.ErrExist in that case.
func writeVersionFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return err
		}
		return fmt.Errorf("store: create %q: %w", path, err)
	}

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("store: write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close %q: %w", path, err)
	}
	return nil
}
