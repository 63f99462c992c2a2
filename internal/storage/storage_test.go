package storage

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/page-notes/internal/crypto"
)

func TestMemory_GetSetRoundtrip(t *testing.T) {
	t.Parallel()
	kv := NewMemory()

	_, ok, err := kv.Get("webNotes")
	if err != nil {
		t.Fatalf("Get on empty store: %v", err)
	}
	if ok {
		t.Fatal("empty store should report key absent")
	}

	blob := []byte(`[{"id":"01ARZ3NDEKTSV4RRFFQ69G5FAV"}]`)
	if err := kv.Set("webNotes", blob); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := kv.Get("webNotes")
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("Get = %q, want %q", got, blob)
	}

	// The returned slice is a copy; mutating it must not corrupt the store.
	got[0] = 'X'
	again, _, _ := kv.Get("webNotes")
	if !bytes.Equal(again, blob) {
		t.Fatal("stored value was mutated through the returned slice")
	}
}

func TestSQLite_EncryptedRoundtrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "notes.db")
	key := crypto.DeriveStorageKey([]byte("0123456789abcdef0123456789abcdef"), 1)

	kv, err := OpenSQLite(path, key)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	blob := []byte(`[{"id":"a"},{"id":"b"}]`)
	if err := kv.Set("webNotes", blob); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set("webNotes", blob); err != nil {
		t.Fatalf("Set (overwrite): %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen with the same key and read the value back.
	kv, err = OpenSQLite(path, key)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()

	got, ok, err := kv.Get("webNotes")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("Get = %q, want %q", got, blob)
	}
}

func TestSQLite_WrongKeyFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "notes.db")
	master := []byte("0123456789abcdef0123456789abcdef")

	kv, err := OpenSQLite(path, crypto.DeriveStorageKey(master, 1))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := kv.Set("webNotes", []byte("[]")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	kv.Close()

	wrong, err := OpenSQLite(path, crypto.DeriveStorageKey(master, 2))
	if err == nil {
		_, _, getErr := wrong.Get("webNotes")
		wrong.Close()
		if getErr == nil {
			t.Fatal("reading with the wrong key should fail")
		}
	}
}

func TestSQLite_PlaintextMode(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "notes.db")

	kv, err := OpenSQLite(path, nil)
	require.NoError(t, err)

	require.NoError(t, kv.Set("webNotes", []byte(`[]`)))
	require.NoError(t, kv.Set("webNotes", []byte(`[{"id":"a"}]`)))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLite(path, nil)
	require.NoError(t, err)
	defer kv.Close()

	got, ok, err := kv.Get("webNotes")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`[{"id":"a"}]`), got)

	_, ok, err = kv.Get("otherKey")
	require.NoError(t, err)
	require.False(t, ok)
}
