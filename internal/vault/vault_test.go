package vault

import (
	"path/filepath"
	"testing"
)

func openTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := Open(Options{Path: filepath.Join(t.TempDir(), "credentials.db"), Passphrase: "this-is-a-long-enough-passphrase"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestStoreAndGet(t *testing.T) {
	v := openTestVault(t)

	if err := v.Store("github", "api_key", "sk-super-secret"); err != nil {
		t.Fatalf("store: %v", err)
	}

	cred, err := v.Get("github", "api_key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cred.Secret != "sk-super-secret" {
		t.Errorf("secret = %q, want sk-super-secret", cred.Secret)
	}
}

func TestGetNotFound(t *testing.T) {
	v := openTestVault(t)
	if _, err := v.Get("missing", "api_key"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPassphraseTooShortRejected(t *testing.T) {
	_, err := Open(Options{Path: filepath.Join(t.TempDir(), "credentials.db"), Passphrase: "short"})
	if err == nil {
		t.Fatal("expected error for passphrase shorter than minimum")
	}
}

func TestWrongPassphraseFailsToDecrypt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.db")

	v1, err := Open(Options{Path: path, Passphrase: "correct-passphrase-number-one"})
	if err != nil {
		t.Fatalf("open v1: %v", err)
	}
	if err := v1.Store("github", "api_key", "secret-value"); err != nil {
		t.Fatalf("store: %v", err)
	}
	v1.Close()

	v2, err := Open(Options{Path: path, Passphrase: "a-totally-different-passphrase"})
	if err != nil {
		t.Fatalf("open v2: %v", err)
	}
	defer v2.Close()

	if _, err := v2.Get("github", "api_key"); err != ErrWrongPassphrase {
		t.Errorf("err = %v, want ErrWrongPassphrase", err)
	}
}

func TestListAndDelete(t *testing.T) {
	v := openTestVault(t)

	if err := v.Store("github", "api_key", "s1"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := v.Store("aws", "access_key", "s2"); err != nil {
		t.Fatalf("store: %v", err)
	}

	creds, err := v.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(creds) != 2 {
		t.Fatalf("creds = %v, want 2", creds)
	}

	if err := v.Delete("github", "api_key"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := v.Get("github", "api_key"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
}

func TestPointerText(t *testing.T) {
	if got := PointerText("github"); got != "vault:github" {
		t.Errorf("PointerText = %q, want vault:github", got)
	}
}
