package note

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kuitang/page-notes/internal/storage"
)

func newTestStore(t testing.TB) (*Store, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	s, err := NewStore(kv, NewLockManager())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s, kv
}

// failingKV rejects writes after a threshold, for write-failure drift tests.
type failingKV struct {
	inner     *storage.Memory
	failAfter int
	writes    int
}

func (f *failingKV) Get(key string) ([]byte, bool, error) {
	return f.inner.Get(key)
}

func (f *failingKV) Set(key string, value []byte) error {
	f.writes++
	if f.writes > f.failAfter {
		return errors.New("disk I/O error")
	}
	return f.inner.Set(key, value)
}

func TestCreate_InsertsAtHead(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	first, err := s.Create("https://example.com/a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := s.Create("https://example.com/b")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("len(All()) = %d, want 2", len(all))
	}
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Fatal("newest note should be at the head")
	}
	if all[0].Title != NewNoteTitle {
		t.Fatalf("new note title = %q, want %q", all[0].Title, NewNoteTitle)
	}
	if all[0].URL != "https://example.com/b" {
		t.Fatalf("new note url = %q", all[0].URL)
	}
}

func testCreateAndImport_IDsPairwiseDistinct(t *rapid.T) {
	kv := storage.NewMemory()
	s, err := NewStore(kv, NewLockManager())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	n := rapid.IntRange(2, 20).Draw(t, "n")
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		var id string
		if rapid.Bool().Draw(t, fmt.Sprintf("import%d", i)) {
			res, err := s.ImportFromText(fmt.Sprintf("file%d.md", i), "body", "")
			if err != nil {
				t.Fatalf("ImportFromText: %v", err)
			}
			id = res.Note.ID
		} else {
			created, err := s.Create("")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			id = created.ID
		}
		if seen[id] {
			t.Fatalf("duplicate note id %q", id)
		}
		seen[id] = true
	}
}

func TestCreateAndImport_IDsPairwiseDistinct(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCreateAndImport_IDsPairwiseDistinct)
}

func TestPersistence_RoundtripPreservesOrderAndFields(t *testing.T) {
	t.Parallel()
	s, kv := newTestStore(t)

	for i := 0; i < 5; i++ {
		n, err := s.Create(fmt.Sprintf("https://example.com/%d", i))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := s.Update(n.ID, Patch{Content: strPtr(fmt.Sprintf("# note %d", i))}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if err := s.SetPassword(s.All()[2].ID, "", "pw12", "pw12"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	want := collectRaw(s)

	reloaded, err := NewStore(kv, NewLockManager())
	if err != nil {
		t.Fatalf("NewStore (reload): %v", err)
	}
	got := collectRaw(reloaded)

	if len(got) != len(want) {
		t.Fatalf("reloaded %d notes, want %d", len(got), len(want))
	}
	for i := range want {
		assertNoteEqual(t, got[i], want[i])
	}
}

// collectRaw reads the collection without lock redaction, via persistence.
func collectRaw(s *Store) []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

func assertNoteEqual(t *testing.T, got, want Note) {
	t.Helper()
	if got.ID != want.ID || got.Title != want.Title || got.Content != want.Content ||
		got.URL != want.URL || got.Password != want.Password {
		t.Fatalf("note mismatch:\ngot  %+v\nwant %+v", got, want)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("timestamp mismatch: got %v/%v want %v/%v",
			got.CreatedAt, got.UpdatedAt, want.CreatedAt, want.UpdatedAt)
	}
}

func TestNewStore_CorruptBlobResetsToEmpty(t *testing.T) {
	t.Parallel()
	kv := storage.NewMemory()
	if err := kv.Set(CollectionKey, []byte("{not json")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s, err := NewStore(kv, NewLockManager())
	if err != nil {
		t.Fatalf("NewStore should not fail on a corrupt blob: %v", err)
	}
	if len(s.All()) != 0 {
		t.Fatal("corrupt blob should load as an empty collection")
	}
	if _, err := s.Create(""); err != nil {
		t.Fatalf("store should be usable after reset: %v", err)
	}
}

func TestUpdate_ClampsTitleAndDefaultsEmpty(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	n, _ := s.Create("")

	long := strings.Repeat("x", 150)
	res, err := s.Update(n.ID, Patch{Title: &long})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.TitleTruncated {
		t.Fatal("truncation should be reported")
	}
	if got := len([]rune(res.Note.Title)); got != TitleMaxChars {
		t.Fatalf("title length = %d, want %d", got, TitleMaxChars)
	}

	empty := ""
	res, err = s.Update(n.ID, Patch{Title: &empty})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Note.Title != UntitledTitle {
		t.Fatalf("empty title should become %q, got %q", UntitledTitle, res.Note.Title)
	}
}

func TestQuotaGate_RefusesCreateAndImport(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	n, _ := s.Create("")

	// Grow a synthetic collection past 90% of capacity; updates are not
	// gated, only creation and import are.
	capacity := float64(CapacityBytes)
	big := strings.Repeat("a", int(capacity*0.95))
	if _, err := s.Update(n.ID, Patch{Content: &big}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !s.Quota().AtCreateGate() {
		t.Fatalf("quota should be at the gate: %+v", s.Quota())
	}
	before := s.All()

	if _, err := s.Create(""); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Create at gate = %v, want ErrQuotaExceeded", err)
	}
	if _, err := s.ImportFromText("plan.txt", "text", ""); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("ImportFromText at gate = %v, want ErrQuotaExceeded", err)
	}

	after := s.All()
	if len(after) != len(before) {
		t.Fatal("refused operations must leave the collection unchanged")
	}
}

func TestImportFromText_SeedsTitleAndContent(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	text := strings.Repeat("plan line\n", 1024) // ~10 KB
	res, err := s.ImportFromText("plan.txt", text, "https://example.com")
	if err != nil {
		t.Fatalf("ImportFromText: %v", err)
	}
	if res.Note.Title != "plan" {
		t.Fatalf("title = %q, want %q", res.Note.Title, "plan")
	}
	if res.Note.Content != text {
		t.Fatal("content should equal the file text")
	}
	if all := s.All(); all[0].ID != res.Note.ID {
		t.Fatal("imported note should be at the head")
	}
}

func TestImportFromText_Validation(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	cases := []struct {
		name    string
		file    string
		wantErr error
	}{
		{"markdown ok", "notes.md", nil},
		{"long markdown ok", "notes.markdown", nil},
		{"text ok", "notes.txt", nil},
		{"uppercase ext ok", "NOTES.MD", nil},
		{"pdf rejected", "notes.pdf", ErrUnsupportedFileType},
		{"no extension rejected", "notes", ErrUnsupportedFileType},
		{"empty name rejected", "", ErrEmptyFileSelection},
	}
	for _, tc := range cases {
		_, err := s.ImportFromText(tc.file, "body", "")
		if tc.wantErr == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestImportFromText_ClampsLongFilename(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	res, err := s.ImportFromText(strings.Repeat("t", 130)+".md", "body", "")
	if err != nil {
		t.Fatalf("ImportFromText: %v", err)
	}
	if !res.TitleTruncated {
		t.Fatal("truncation should be reported")
	}
	if got := len([]rune(res.Note.Title)); got != TitleMaxChars {
		t.Fatalf("title length = %d, want %d", got, TitleMaxChars)
	}
}

func TestDelete_RemovesNoteAndUnlockEntry(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	n, _ := s.Create("")

	if err := s.SetPassword(n.ID, "", "pw12", "pw12"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if err := s.Verify(n.ID, "pw12"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := s.Delete(n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(s.All()) != 0 {
		t.Fatal("collection should be empty after delete")
	}
	if s.locks.IsUnlocked(n.ID, EncodePassword("pw12")) {
		t.Fatal("deleted note id should leave the unlocked-set")
	}
	if err := s.Delete(n.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestLockGating_EndToEndScenario(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	n, _ := s.Create("")
	if _, err := s.Update(n.ID, Patch{Content: strPtr("original")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.SetPassword(n.ID, "", "pw12", "pw12"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	// Setting a password does not unlock; after an edit session the note
	// re-locks, so an update must be rejected and leave content unchanged.
	s.Lock(n.ID)
	if _, err := s.Update(n.ID, Patch{Content: strPtr("tampered")}); !errors.Is(err, ErrLocked) {
		t.Fatalf("Update while locked = %v, want ErrLocked", err)
	}
	if _, err := s.Get(n.ID); !errors.Is(err, ErrLocked) {
		t.Fatalf("Get while locked = %v, want ErrLocked", err)
	}
	if got := s.All()[0].Content; got != "" {
		t.Fatalf("locked note content should not be exposed in listings, got %q", got)
	}

	if err := s.Verify(n.ID, "wrong"); !errors.Is(err, ErrLockMismatch) {
		t.Fatalf("Verify(wrong) = %v, want ErrLockMismatch", err)
	}
	if err := s.Verify(n.ID, "pw12"); err != nil {
		t.Fatalf("Verify(pw12): %v", err)
	}

	before, err := s.Get(n.ID)
	if err != nil {
		t.Fatalf("Get after unlock: %v", err)
	}
	if before.Content != "original" {
		t.Fatalf("stored content changed while locked: %q", before.Content)
	}

	time.Sleep(2 * time.Millisecond)
	res, err := s.Update(n.ID, Patch{Content: strPtr("edited")})
	if err != nil {
		t.Fatalf("Update after unlock: %v", err)
	}
	if res.Note.Content != "edited" {
		t.Fatalf("content = %q, want %q", res.Note.Content, "edited")
	}
	if !res.Note.UpdatedAt.After(before.UpdatedAt) {
		t.Fatal("updatedAt should advance on mutation")
	}
}

func TestPersist_WriteFailureKeepsMemoryState(t *testing.T) {
	t.Parallel()
	kv := &failingKV{inner: storage.NewMemory(), failAfter: 1}
	s, err := NewStore(kv, NewLockManager())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if _, err := s.Create(""); err != nil {
		t.Fatalf("first Create should persist: %v", err)
	}
	n, err := s.Create("")
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("second Create = %v, want ErrStorageWrite", err)
	}

	// In-memory state is not rolled back; the note exists despite the
	// failed write.
	if len(s.All()) != 2 {
		t.Fatalf("len(All()) = %d, want 2 (no rollback)", len(s.All()))
	}
	if n.ID == "" {
		t.Fatal("the note should still be returned to the caller")
	}
}

func strPtr(s string) *string { return &s }
