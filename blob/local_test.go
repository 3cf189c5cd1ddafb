package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"
)

func TestLocalStore_PutOpenDelete(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	content := []byte("inspection report bytes")
	ref, err := store.Put(ctx, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	sum := sha256.Sum256(content)
	wantHash := hex.EncodeToString(sum[:])
	if ref.Hash != wantHash {
		t.Errorf("expected hash %q, got %q", wantHash, ref.Hash)
	}
	if ref.SizeBytes != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), ref.SizeBytes)
	}

	rc, err := store.Open(ctx, ref)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("expected content %q, got %q", content, got)
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Open(ctx, ref); err == nil {
		t.Error("expected Open to fail after Delete")
	}
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ref := Ref{Locator: "/nonexistent/path/does-not-exist"}

	if err := store.Delete(context.Background(), ref); err != nil {
		t.Errorf("expected no error deleting a missing blob, got %v", err)
	}
}
