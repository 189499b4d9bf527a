package config

import "testing"

func TestCredentialStoreRoundtrip(t *testing.T) {
	cs := NewCredentialStore(t.TempDir())

	if cs.HasKey() {
		t.Error("HasKey should be false before saving")
	}

	if err := cs.SaveAPIKey("AIza-test-key", "hunter2"); err != nil {
		t.Fatal(err)
	}
	if !cs.HasKey() {
		t.Error("HasKey should be true after saving")
	}

	got, err := cs.LoadAPIKey("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "AIza-test-key" {
		t.Errorf("LoadAPIKey = %q, want the saved key", got)
	}
}

func TestCredentialStoreWrongPassphrase(t *testing.T) {
	cs := NewCredentialStore(t.TempDir())

	if err := cs.SaveAPIKey("AIza-test-key", "correct"); err != nil {
		t.Fatal(err)
	}

	if _, err := cs.LoadAPIKey("wrong"); err == nil {
		t.Error("decryption with the wrong passphrase must fail")
	}
}

func TestCredentialStoreRequiresPassphrase(t *testing.T) {
	cs := NewCredentialStore(t.TempDir())

	if err := cs.SaveAPIKey("key", ""); err == nil {
		t.Error("saving without a passphrase must fail")
	}
}

func TestCredentialStoreMissingFile(t *testing.T) {
	cs := NewCredentialStore(t.TempDir())

	if _, err := cs.LoadAPIKey("any"); err == nil {
		t.Error("loading with no credential file must fail")
	}
}
