package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
	"github.com/Syxd09/code-byte-sub000/internal/infra/file"
)

func testCred() domain.SessionCredential {
	return domain.SessionCredential{GameCode: "ABC123", ParticipantID: "p1", SessionToken: "tok"}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := file.NewCredentialStore(path)

	if _, _, found, err := store.Load(ctx); err != nil || found {
		t.Fatalf("expected empty store, found=%v err=%v", found, err)
	}

	identity := domain.ParticipantIdentity{ID: "p1", DisplayName: "Alice", TotalScore: 30}
	if err := store.Save(ctx, testCred(), identity); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cred, got, found, err := store.Load(ctx)
	if err != nil || !found {
		t.Fatalf("load failed: found=%v err=%v", found, err)
	}
	if cred != testCred() {
		t.Fatalf("credential mismatch: %+v", cred)
	}
	if got.DisplayName != "Alice" || got.TotalScore != 30 {
		t.Fatalf("identity mismatch: %+v", got)
	}
}

func TestCorruptFileTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	store := file.NewCredentialStore(path)

	_, _, found, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("corrupt file must not error: %v", err)
	}
	if found {
		t.Fatal("corrupt file must be treated as no session")
	}
}

func TestIncompleteCredentialTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	store := file.NewCredentialStore(path)

	if err := store.Save(ctx, domain.SessionCredential{GameCode: "ABC123"}, domain.ParticipantIdentity{}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, _, found, _ := store.Load(ctx); found {
		t.Fatal("a credential without a token must not resume")
	}
}

func TestPurgeRemovesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	store := file.NewCredentialStore(path)

	if err := store.Save(ctx, testCred(), domain.ParticipantIdentity{ID: "p1"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Purge(ctx); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("purge must remove the session file")
	}
	// Purging an already-empty store is not an error.
	if err := store.Purge(ctx); err != nil {
		t.Fatalf("second purge failed: %v", err)
	}
}
