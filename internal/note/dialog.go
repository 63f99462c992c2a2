package note

import "sync"

// DialogKind selects the dialog variant the host should display.
type DialogKind string

const (
	DialogConfirm        DialogKind = "confirm"
	DialogPassword       DialogKind = "password"
	DialogVerifyPassword DialogKind = "verify-password"
)

// DialogRequest describes a dialog for the hosting UI.
type DialogRequest struct {
	Kind    DialogKind
	Title   string
	Message string

	// Danger marks the primary action as destructive (delete confirmation).
	Danger bool

	// Error carries a validation message when the dialog is re-shown after a
	// failed attempt (wrong password, mismatch).
	Error string
}

// DialogOutcome is which of the three completion paths fired.
type DialogOutcome int

const (
	OutcomePrimary DialogOutcome = iota
	OutcomeSecondary
	OutcomeClosed
)

// DialogInput carries the values entered before the outcome fired.
type DialogInput struct {
	Password string // verify-password dialogs
	Current  string // password-change dialogs
	New      string
	Confirm  string
}

// DialogResult is the single completion value of a dialog.
type DialogResult struct {
	Outcome DialogOutcome
	Input   DialogInput
}

// Completion is a single-shot continuation: however many times the host
// calls Resolve, the callback fires exactly once.
type Completion struct {
	once sync.Once
	fn   func(DialogResult)
}

// NewCompletion wraps fn in a single-shot guard.
func NewCompletion(fn func(DialogResult)) *Completion {
	return &Completion{fn: fn}
}

// Resolve delivers the dialog result. Calls after the first are ignored.
func (c *Completion) Resolve(res DialogResult) {
	c.once.Do(func() { c.fn(res) })
}

// Dialogs is the external dialog collaborator. Show must eventually resolve
// done exactly once; it never blocks the caller.
type Dialogs interface {
	Show(req DialogRequest, done *Completion)
}

// NopDialogs resolves every dialog as closed. Used by hosts with no
// interactive surface, where verification happens through the API instead.
type NopDialogs struct{}

func (NopDialogs) Show(_ DialogRequest, done *Completion) {
	done.Resolve(DialogResult{Outcome: OutcomeClosed})
}
