package note

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/kuitang/page-notes/internal/obs"
	"github.com/kuitang/page-notes/internal/urlutil"
)

// Mode is the editor display mode.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeEdit    Mode = "edit"
)

// Session tracks the selected note and the editor mode, and consults the
// lock state before exposing or mutating content. All dialog-driven flows
// (verification, delete confirmation) are continuations resolved by the
// dialog collaborator; nothing here blocks.
type Session struct {
	mu      sync.Mutex
	store   *Store
	saver   *Scheduler
	dialogs Dialogs
	notify  func(message string)
	log     *slog.Logger

	pageURL       string
	selectedID    string
	mode          Mode
	title         string
	content       string
	titleDisabled bool
}

// NewSession creates a session over store. notify receives transient
// user-facing messages (truncation notices, save failures); nil routes them
// to the log.
func NewSession(store *Store, dialogs Dialogs, saver *Scheduler, notify func(string)) *Session {
	s := &Session{
		store:   store,
		saver:   saver,
		dialogs: dialogs,
		notify:  notify,
		log:     obs.Pkg("session"),
		mode:    ModePreview,
	}
	if s.saver == nil {
		s.saver = NewScheduler(0)
	}
	if s.notify == nil {
		s.notify = func(message string) { s.log.Info("notice", "message", message) }
	}
	return s
}

// SetPageURL records the current page URL delivered over the host channel.
// New notes are stamped with it; the session never blocks waiting for it.
// Non-web URLs normalize to empty.
func (s *Session) SetPageURL(url string) {
	normalized := urlutil.NormalizePageURL(url)
	s.mu.Lock()
	s.pageURL = normalized
	s.mu.Unlock()
}

// PageURL returns the last delivered page URL.
func (s *Session) PageURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageURL
}

// Select switches the editor to the given note: any pending autosave for the
// previous note is flushed first, then the note's title and content are
// loaded and the mode resets to preview. A gated, locked note loads with the
// title field disabled and no content exposed.
func (s *Session) Select(id string) error {
	// Flush before switching so the last debounce window is never dropped.
	s.saver.Flush()

	n, ok := s.store.peek(id)
	if !ok {
		return ErrNotFound
	}
	locked := n.Gated() && !s.store.Unlocked(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = id
	s.mode = ModePreview
	s.title = n.Title
	s.titleDisabled = locked
	if locked {
		s.content = ""
	} else {
		s.content = n.Content
	}
	return nil
}

// Selected returns the selected note id ("" when none) and the current mode.
func (s *Session) Selected() (string, Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID, s.mode
}

// Title returns the title as shown in the editor.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Content returns the content as exposed to the editor. Empty for a gated,
// locked selection.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// TitleDisabled reports whether the title field is disabled (gated + locked).
func (s *Session) TitleDisabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titleDisabled
}

// WordCount returns the character and line counts for the exposed content.
// Empty content has zero lines.
func (s *Session) WordCount() (chars, lines int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chars = len([]rune(s.content))
	if s.content != "" {
		lines = strings.Count(s.content, "\n") + 1
	}
	return chars, lines
}

// EditTitle records a title keystroke and schedules an autosave. Ignored
// while the title field is disabled.
func (s *Session) EditTitle(title string) {
	s.mu.Lock()
	if s.selectedID == "" || s.titleDisabled {
		s.mu.Unlock()
		return
	}
	s.title = title
	s.mu.Unlock()
	s.scheduleAutosave()
}

// EditContent records a content keystroke and schedules an autosave.
func (s *Session) EditContent(content string) {
	s.mu.Lock()
	if s.selectedID == "" {
		s.mu.Unlock()
		return
	}
	s.content = content
	s.mu.Unlock()
	s.scheduleAutosave()
}

func (s *Session) scheduleAutosave() {
	s.mu.Lock()
	id, title, content := s.selectedID, s.title, s.content
	s.mu.Unlock()
	if id == "" {
		return
	}
	s.saver.Schedule(func() { s.applyEdit(id, title, content) })
}

// applyEdit is the debounced store mutation. A locked note rejects the edit;
// the exposed title is reverted to the stored value, matching the disabled
// title field.
func (s *Session) applyEdit(id, title, content string) {
	res, err := s.store.Update(id, Patch{Title: &title, Content: &content})
	if errors.Is(err, ErrLocked) {
		if n, ok := s.store.peek(id); ok {
			s.mu.Lock()
			if s.selectedID == id {
				s.title = n.Title
			}
			s.mu.Unlock()
		}
		return
	}
	if err != nil {
		s.log.Warn("autosave failed", "note_id", id, "error", err)
		s.notify("Failed to save")
		return
	}
	if res.TitleTruncated {
		s.mu.Lock()
		if s.selectedID == id {
			s.title = res.Note.Title
		}
		s.mu.Unlock()
		s.notify("Note titles are limited to 100 characters")
	}
}

// EnterEdit transitions to edit mode. A gated, locked note first goes
// through password verification via the dialog collaborator; the transition
// happens only in the success continuation.
func (s *Session) EnterEdit() {
	s.mu.Lock()
	id := s.selectedID
	s.mu.Unlock()
	if id == "" {
		return
	}

	n, ok := s.store.peek(id)
	if !ok {
		return
	}
	if n.Gated() && !s.store.Unlocked(id) {
		s.verifyThenRun(id, func() { s.enterEditUnlocked(id) }, "")
		return
	}
	s.enterEditUnlocked(id)
}

func (s *Session) enterEditUnlocked(id string) {
	n, ok := s.store.peek(id)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedID != id {
		return
	}
	s.mode = ModeEdit
	s.titleDisabled = false
	s.title = n.Title
	s.content = n.Content
}

// ExitEdit returns to preview. Pending edits are flushed first; a gated note
// is then re-locked, so edit access never outlives a single edit session.
func (s *Session) ExitEdit() {
	s.saver.Flush()

	s.mu.Lock()
	id := s.selectedID
	s.mode = ModePreview
	s.mu.Unlock()
	if id == "" {
		return
	}

	n, ok := s.store.peek(id)
	if !ok || !n.Gated() {
		return
	}
	s.store.Lock(id)
	s.mu.Lock()
	if s.selectedID == id {
		s.titleDisabled = true
		s.content = ""
	}
	s.mu.Unlock()
}

// RequestDelete runs the delete flow for the selected note: verification
// first when gated and locked, then an external confirmation. Cancelling the
// confirmation on a note unlocked solely for this delete re-locks it.
func (s *Session) RequestDelete() {
	s.mu.Lock()
	id := s.selectedID
	s.mu.Unlock()
	if id == "" {
		return
	}

	n, ok := s.store.peek(id)
	if !ok {
		return
	}
	if n.Gated() && !s.store.Unlocked(id) {
		s.verifyThenRun(id, func() { s.confirmDelete(id, true) }, "")
		return
	}
	s.confirmDelete(id, false)
}

func (s *Session) confirmDelete(id string, relockOnCancel bool) {
	req := DialogRequest{
		Kind:    DialogConfirm,
		Title:   "Delete note",
		Message: "Delete this note? This cannot be undone.",
		Danger:  true,
	}
	s.dialogs.Show(req, NewCompletion(func(res DialogResult) {
		if res.Outcome != OutcomePrimary {
			if relockOnCancel {
				s.store.Lock(id)
				s.mu.Lock()
				if s.selectedID == id {
					s.titleDisabled = true
					s.content = ""
				}
				s.mu.Unlock()
			}
			return
		}

		if err := s.store.Delete(id); err != nil {
			s.log.Warn("delete failed", "note_id", id, "error", err)
			s.notify("Failed to delete")
			return
		}
		s.mu.Lock()
		if s.selectedID == id {
			s.selectedID = ""
			s.mode = ModePreview
			s.title = ""
			s.content = ""
			s.titleDisabled = false
		}
		s.mu.Unlock()
	}))
}

// verifyThenRun drives the verification dialog. A mismatch re-shows the
// dialog with an inline error; cancel and close abandon the flow.
func (s *Session) verifyThenRun(id string, onSuccess func(), prevError string) {
	req := DialogRequest{
		Kind:    DialogVerifyPassword,
		Title:   "This note is locked",
		Message: "Enter the password to unlock it",
		Error:   prevError,
	}
	s.dialogs.Show(req, NewCompletion(func(res DialogResult) {
		if res.Outcome != OutcomePrimary {
			return
		}
		if err := s.store.Verify(id, res.Input.Password); err != nil {
			s.verifyThenRun(id, onSuccess, "Wrong password, try again")
			return
		}
		onSuccess()
	}))
}
