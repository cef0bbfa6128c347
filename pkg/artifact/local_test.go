package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return store
}

func TestLocalWriteAndRead(t *testing.T) {
	store := newTestLocal(t)
	ctx := context.Background()

	if err := store.WriteFile(ctx, BotAudio, []byte("mp3 payload")); err != nil {
		t.Fatal(err)
	}

	rc, err := store.Read(ctx, BotAudio)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mp3 payload" {
		t.Fatalf("Read = %q, want %q", data, "mp3 payload")
	}
}

func TestLocalReadMissing(t *testing.T) {
	store := newTestLocal(t)

	_, err := store.Read(context.Background(), "absent.mp3")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestLocalWriteReplaces(t *testing.T) {
	store := newTestLocal(t)
	ctx := context.Background()

	if err := store.WriteFile(ctx, BotAudio, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteFile(ctx, BotAudio, []byte("new")); err != nil {
		t.Fatal(err)
	}

	rc, err := store.Read(ctx, BotAudio)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "new" {
		t.Fatalf("Read = %q, want %q", data, "new")
	}
}

func TestLocalWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	if err := store.WriteFile(context.Background(), BotAudio, []byte("x")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != BotAudio {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Fatalf("dir entries = %v, want only %q", names, BotAudio)
	}
}

func TestLocalNestedPath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	if err := store.WriteFile(ctx, "sessions/abc/"+UserAudio, []byte("wav")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sessions", "abc", UserAudio)); err != nil {
		t.Fatalf("nested artifact not on disk: %v", err)
	}
}

func TestLocalExistsAndDelete(t *testing.T) {
	store := newTestLocal(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, GreetingAudio)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Exists = true before write")
	}

	if err := store.WriteFile(ctx, GreetingAudio, []byte("x")); err != nil {
		t.Fatal(err)
	}
	ok, err = store.Exists(ctx, GreetingAudio)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Exists = false after write")
	}

	if err := store.Delete(ctx, GreetingAudio); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := store.Delete(ctx, GreetingAudio); err != nil {
		t.Fatal(err)
	}
	ok, _ = store.Exists(ctx, GreetingAudio)
	if ok {
		t.Fatal("Exists = true after delete")
	}
}
