package session

// The edit cursor is a per-user single-slot register: either idle or
// "awaiting a correction for transcription X". It is owned exclusively by
// the registry so cursor transitions share the per-user lock with record
// access, which keeps a concurrent edit-request/text-message pair from
// observing a torn state.

// BeginEdit points the user's edit cursor at the record identified by id and
// returns a snapshot of that record for the correction prompt. When the
// record does not exist it returns [ErrRecordNotFound] and the cursor is
// left untouched. A second BeginEdit while one is pending overwrites the
// target; the cursor is a register, not a stack.
func (r *Registry) BeginEdit(userID, id string) (Record, error) {
	u := r.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	rec, ok := u.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	u.cursor = id
	return snapshot(userID, rec), nil
}

// ConsumeEdit clears the user's edit cursor and returns the transcription id
// it pointed at. The second return value is false when no edit was pending.
// Consumption is single-shot: two concurrent texts from the same user yield
// exactly one true.
func (r *Registry) ConsumeEdit(userID string) (string, bool) {
	u := r.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.cursor == "" {
		return "", false
	}
	id := u.cursor
	u.cursor = ""
	return id, true
}

// PendingEdit reports the user's current edit target without consuming it.
func (r *Registry) PendingEdit(userID string) (string, bool) {
	u := r.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cursor, u.cursor != ""
}
