// Package session owns the in-memory per-user transcription state: record
// lifecycle, TranscriptionId allocation, and the single-slot edit cursor.
//
// All state is partitioned by user. Each user's records, id counter, and
// cursor live behind one per-user mutex, so two users never contend while
// operations for one user are strictly serialised — including the id
// allocation and cursor transitions that would otherwise race.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/vocalis/internal/store"
)

// ErrRecordNotFound is returned when a (user, transcription id) pair does
// not resolve to a known record.
var ErrRecordNotFound = errors.New("session: transcription not found")

// Record is a snapshot of one transcription's head state. Registry methods
// return copies; mutating a Record has no effect on registry state.
type Record struct {
	// ID is the per-user sequential transcription identifier ("1", "2", …).
	ID string

	// UserID is the transport-supplied owner of this record.
	UserID string

	// Folder is the storage folder name, "<DD-MM-YYYY>_<ID>".
	Folder string

	// Version is the highest revision written so far.
	Version int

	// Text is the transcript text of Version.
	Text string

	// Dir is the absolute storage directory backing this record.
	Dir string
}

// RevisionStore is the durable revision persistence the registry delegates
// to. Implemented by [store.FileStore].
type RevisionStore interface {
	CreateInitial(userID, folder, text string) (store.Handle, error)
	AppendRevision(h store.Handle, text string) (int, store.Handle, error)
}

// record is the mutable head tracked internally, pairing the public snapshot
// fields with the store handle.
type record struct {
	id     string
	folder string
	handle store.Handle
	text   string
}

// userState holds everything the registry tracks for one user. All fields
// are guarded by mu.
type userState struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]*record

	// cursor is the pending edit target id; empty means idle.
	cursor string
}

// Registry is the exclusive owner of transcription records and id
// allocation. Safe for concurrent use.
type Registry struct {
	store RevisionStore
	now   func() time.Time

	mu    sync.RWMutex
	users map[string]*userState
}

// Option configures a [Registry].
type Option func(*Registry)

// WithNow overrides the clock used for folder naming. Intended for tests.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a Registry persisting revisions through rs.
func NewRegistry(rs RevisionStore, opts ...Option) *Registry {
	r := &Registry{
		store: rs,
		now:   time.Now,
		users: make(map[string]*userState),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// user returns the state shard for userID, creating it lazily.
func (r *Registry) user(userID string) *userState {
	r.mu.RLock()
	u, ok := r.users[userID]
	r.mu.RUnlock()
	if ok {
		return u
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok = r.users[userID]; !ok {
		u = &userState{records: make(map[string]*record)}
		r.users[userID] = u
	}
	return u
}

// Create allocates the next TranscriptionId for userID, writes revision 1
// through the store, and returns the new record. The id counter only
// advances when the storage write succeeds, so a failed create never burns
// an identifier.
func (r *Registry) Create(userID, initialText string) (Record, error) {
	u := r.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	id := u.nextID + 1
	idStr := strconv.FormatInt(id, 10)
	folder := fmt.Sprintf("%s_%s", r.now().Format("02-01-2006"), idStr)

	handle, err := r.store.CreateInitial(userID, folder, initialText)
	if err != nil {
		return Record{}, fmt.Errorf("session: create record: %w", err)
	}

	u.nextID = id
	rec := &record{id: idStr, folder: folder, handle: handle, text: initialText}
	u.records[idStr] = rec
	return snapshot(userID, rec), nil
}

// Get returns a snapshot of the record identified by (userID, id), or
// [ErrRecordNotFound].
func (r *Registry) Get(userID, id string) (Record, error) {
	u := r.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	rec, ok := u.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return snapshot(userID, rec), nil
}

// Update appends a new revision with newText and advances the record head.
// Returns [ErrRecordNotFound] when the record does not exist; the head is
// only mutated after the revision is durably written.
func (r *Registry) Update(userID, id, newText string) (Record, error) {
	u := r.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	rec, ok := u.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}

	_, handle, err := r.store.AppendRevision(rec.handle, newText)
	if err != nil {
		return Record{}, fmt.Errorf("session: update record %s/%s: %w", userID, id, err)
	}
	rec.handle = handle
	rec.text = newText
	return snapshot(userID, rec), nil
}

// snapshot copies a record into its public form. Caller holds the user lock.
func snapshot(userID string, rec *record) Record {
	return Record{
		ID:      rec.id,
		UserID:  userID,
		Folder:  rec.folder,
		Version: rec.handle.Version,
		Text:    rec.text,
		Dir:     rec.handle.Dir,
	}
}
