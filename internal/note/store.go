package note

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kuitang/page-notes/internal/logutil"
	"github.com/kuitang/page-notes/internal/obs"
	"github.com/kuitang/page-notes/internal/storage"
)

// importExtensions are the file extensions accepted by ImportFromText.
var importExtensions = []string{".md", ".markdown", ".txt"}

// Store owns the in-memory note collection. It is the sole writer: every
// mutation goes through its methods, persists the full collection, and
// recomputes the quota snapshot. Persistence is a whole-blob overwrite on
// each mutation.
type Store struct {
	mu      sync.Mutex
	kv      storage.KV
	locks   *LockManager
	notes   []Note
	quota   QuotaSnapshot
	entropy *rand.Rand
	log     *slog.Logger
}

// NewStore loads the collection from kv. A missing key or an unreadable blob
// is not fatal: the store starts with an empty collection and logs the reset.
func NewStore(kv storage.KV, locks *LockManager) (*Store, error) {
	s := &Store{
		kv:      kv,
		locks:   locks,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     obs.Pkg("note"),
	}

	blob, ok, err := kv.Get(CollectionKey)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	if ok && len(blob) > 0 {
		if err := json.Unmarshal(blob, &s.notes); err != nil {
			s.log.Warn("stored notes unreadable, resetting to empty collection", "error", err)
			s.notes = nil
		}
	}

	s.quota = Snapshot(s.notes)
	return s, nil
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// persist writes the full collection and recomputes the quota snapshot.
// On a write failure the in-memory state is kept: the next successful
// mutation rewrites the whole blob, which heals the drift.
func (s *Store) persist() error {
	s.quota = Snapshot(s.notes)

	blob, err := json.Marshal(s.notes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if s.notes == nil {
		blob = []byte("[]")
	}
	if err := s.kv.Set(CollectionKey, blob); err != nil {
		s.log.Error("persist failed, in-memory state retained", "error", err)
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func (s *Store) find(id string) int {
	for i := range s.notes {
		if s.notes[i].ID == id {
			return i
		}
	}
	return -1
}

// Create builds a fresh note stamped with pageURL and inserts it at the head
// of the collection. Refused with ErrQuotaExceeded at the creation gate.
func (s *Store) Create(pageURL string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota.AtCreateGate() {
		return Note{}, ErrQuotaExceeded
	}

	now := time.Now().UTC()
	n := Note{
		ID:        s.newID(),
		Title:     NewNoteTitle,
		Content:   "",
		URL:       pageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.notes = append([]Note{n}, s.notes...)
	if err := s.persist(); err != nil {
		return n, err
	}
	s.log.Debug("note created", "note_id", n.ID)
	return n, nil
}

// Update merges patch into the note. A gated, locked note rejects the update
// with ErrLocked and remains unchanged; callers revert any exposed title to
// the stored value. An empty patched title becomes UntitledTitle; titles are
// clamped to TitleMaxChars with the truncation reported.
func (s *Store) Update(id string, patch Patch) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return UpdateResult{}, ErrNotFound
	}
	n := &s.notes[i]
	if n.Gated() && !s.locks.IsUnlocked(n.ID, n.Password) {
		return UpdateResult{}, ErrLocked
	}

	truncated := false
	if patch.Title != nil {
		title := *patch.Title
		if title == "" {
			title = UntitledTitle
		}
		title, truncated = clampTitle(title)
		n.Title = title
	}
	if patch.Content != nil {
		n.Content = *patch.Content
	}
	n.UpdatedAt = time.Now().UTC()

	if err := s.persist(); err != nil {
		return UpdateResult{Note: *n, TitleTruncated: truncated}, err
	}
	return UpdateResult{Note: *n, TitleTruncated: truncated}, nil
}

// Delete removes the note and drops its id from the unlocked-set. Lock
// verification for gated notes happens in the editor session before this is
// called.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return ErrNotFound
	}
	s.notes = append(s.notes[:i], s.notes[i+1:]...)
	s.locks.Lock(id)

	if err := s.persist(); err != nil {
		return err
	}
	s.log.Debug("note deleted", "note_id", id)
	return nil
}

// ImportFromText creates a note seeded from an uploaded file. The name must
// carry one of the accepted text/markdown extensions; the title is the
// filename without its extension, clamped like any other title.
func (s *Store) ImportFromText(name, text, pageURL string) (ImportResult, error) {
	if name == "" {
		return ImportResult{}, ErrEmptyFileSelection
	}

	ext := ""
	lower := strings.ToLower(name)
	for _, candidate := range importExtensions {
		if strings.HasSuffix(lower, candidate) {
			ext = candidate
			break
		}
	}
	if ext == "" {
		return ImportResult{}, ErrUnsupportedFileType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota.AtCreateGate() {
		return ImportResult{}, ErrQuotaExceeded
	}

	title := name[:len(name)-len(ext)]
	title, truncated := clampTitle(title)
	if title == "" {
		title = ImportedTitle
	}

	now := time.Now().UTC()
	n := Note{
		ID:        s.newID(),
		Title:     title,
		Content:   text,
		URL:       pageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.notes = append([]Note{n}, s.notes...)
	res := ImportResult{Note: n, TitleTruncated: truncated}
	if err := s.persist(); err != nil {
		return res, err
	}
	s.log.Debug("note imported", "note_id", n.ID, "file", logutil.TruncateForLog(name, 120))
	return res, nil
}

// All returns the collection head-first. Content of gated, locked notes is
// blanked: titles stay listable, bodies are not exposed until verification.
func (s *Store) All() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	for i := range out {
		if out[i].Gated() && !s.locks.IsUnlocked(out[i].ID, out[i].Password) {
			out[i].Content = ""
		}
	}
	return out
}

// Get returns a single note. ErrLocked when the note is gated and not in the
// unlocked-set.
func (s *Store) Get(id string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return Note{}, ErrNotFound
	}
	n := s.notes[i]
	if n.Gated() && !s.locks.IsUnlocked(n.ID, n.Password) {
		return Note{}, ErrLocked
	}
	return n, nil
}

// peek returns a copy of the note without the lock gate. Reserved for the
// editor session, which exposes only what its own rules allow.
func (s *Store) peek(id string) (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return Note{}, false
	}
	return s.notes[i], true
}

// Quota returns the snapshot computed by the last mutation (or load).
func (s *Store) Quota() QuotaSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quota
}

// Verify checks a supplied password for the note and, on success, adds it to
// the unlocked-set.
func (s *Store) Verify(id, supplied string) error {
	s.mu.Lock()
	i := s.find(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	encoded := s.notes[i].Password
	s.mu.Unlock()

	return s.locks.Verify(id, encoded, supplied)
}

// Lock explicitly re-locks the note.
func (s *Store) Lock(id string) {
	s.locks.Lock(id)
}

// Unlocked reports whether the note is currently readable.
func (s *Store) Unlocked(id string) bool {
	n, ok := s.peek(id)
	if !ok {
		return false
	}
	return s.locks.IsUnlocked(n.ID, n.Password)
}

// SetPassword runs the password change state machine for the note and
// persists the result. Changing or removing a password requires the current
// one; it does not require the note to be unlocked first.
func (s *Store) SetPassword(id, current, newPassword, confirmPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return ErrNotFound
	}
	n := &s.notes[i]

	encoded, err := s.locks.NextPassword(n.Password, current, newPassword, confirmPassword)
	if err != nil {
		return err
	}

	n.Password = encoded
	if encoded == "" {
		// Gating removed; tidy the unlocked-set.
		s.locks.Lock(id)
	}
	return s.persist()
}

func clampTitle(title string) (string, bool) {
	runes := []rune(title)
	if len(runes) <= TitleMaxChars {
		return title, false
	}
	return string(runes[:TitleMaxChars]), true
}
