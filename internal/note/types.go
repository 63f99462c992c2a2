// Package note implements the note collection core: the store, the
// password gate, quota tracking, autosave debouncing, and the editor
// session state machine. Presentation (panel DOM, drag physics, dialog
// chrome) lives outside this module and talks to it through the api package.
package note

import (
	"errors"
	"time"
)

const (
	// CollectionKey is the fixed storage key holding the serialized collection.
	CollectionKey = "webNotes"

	// TitleMaxChars is the maximum title length; longer titles are clamped.
	TitleMaxChars = 100

	// UntitledTitle replaces an empty title on save.
	UntitledTitle = "Untitled note"

	// NewNoteTitle is the title given to freshly created notes.
	NewNoteTitle = "New note"

	// ImportedTitle replaces an empty title derived from an imported filename.
	ImportedTitle = "Imported note"
)

// Note is the unit of persisted content. Field names follow the on-disk
// JSON layout; Password holds the obfuscated form and is omitted entirely
// when the note is not gated.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Password  string    `json:"password,omitempty"`
}

// Gated reports whether the note requires verification before content
// exposure or mutation.
func (n *Note) Gated() bool {
	return n.Password != ""
}

// Patch carries an update to a note. Nil fields are left unchanged.
type Patch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// UpdateResult reports the outcome of an update.
type UpdateResult struct {
	Note           Note `json:"note"`
	TitleTruncated bool `json:"title_truncated"`
}

// ImportResult reports the outcome of a file import.
type ImportResult struct {
	Note           Note `json:"note"`
	TitleTruncated bool `json:"title_truncated"`
}

// Sentinel errors. All are recoverable: the session stays consistent and the
// user can retry or correct the input.
var (
	ErrNotFound                = errors.New("note not found")
	ErrQuotaExceeded           = errors.New("storage is full: delete some notes before adding more")
	ErrLocked                  = errors.New("note is locked")
	ErrLockMismatch            = errors.New("wrong password")
	ErrWrongCurrentPassword    = errors.New("current password is incorrect")
	ErrPasswordTooShort        = errors.New("password must be at least 4 characters")
	ErrPasswordConfirmMismatch = errors.New("passwords do not match")
	ErrUnsupportedFileType     = errors.New("only .md, .markdown and .txt files can be imported")
	ErrEmptyFileSelection      = errors.New("no file selected")
	ErrStorageWrite            = errors.New("failed to save notes")
)
