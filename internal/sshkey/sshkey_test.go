package sshkey

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/kompox/k8socks/domain/model"
)

func TestGenerateEphemeral(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	kp, err := GenerateEphemeral(dir)
	if err != nil {
		t.Fatalf("GenerateEphemeral() error = %v", err)
	}

	info, err := os.Stat(kp.PrivateKeyPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("private key mode = %v", info.Mode().Perm())
	}

	privPEM, err := os.ReadFile(kp.PrivateKeyPath)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.ParsePrivateKey(privPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey() error = %v", err)
	}

	pub, err := ReadPublicKey(kp.PublicKeyPath)
	if err != nil {
		t.Fatalf("ReadPublicKey() error = %v", err)
	}
	parsed, _, _, _, err := ssh.ParseAuthorizedKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	if string(parsed.Marshal()) != string(signer.PublicKey().Marshal()) {
		t.Error("public key does not match private key")
	}

	if err := kp.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(kp.PublicKeyPath); !os.IsNotExist(err) {
		t.Error("public key not removed")
	}
	if err := kp.Remove(); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestReadPublicKeyErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.pub")
	garbage := filepath.Join(dir, "garbage.pub")
	_ = os.WriteFile(empty, []byte("  \n"), 0o600)
	_ = os.WriteFile(garbage, []byte("not a key"), 0o600)

	for _, p := range []string{filepath.Join(dir, "missing.pub"), empty, garbage} {
		t.Run(filepath.Base(p), func(t *testing.T) {
			_, err := ReadPublicKey(p)
			if !errors.Is(err, model.ErrCredentialRead) {
				t.Errorf("err = %v, want ErrCredentialRead", err)
			}
		})
	}
}

func TestReadPublicKeyKeepsCause(t *testing.T) {
	_, err := ReadPublicKey(filepath.Join(t.TempDir(), "missing.pub"))
	if !errors.Is(err, model.ErrCredentialRead) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrCredentialRead wrapping os.ErrNotExist", err)
	}
}

func TestParsePublicKeyTrims(t *testing.T) {
	kp, err := GenerateEphemeral(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParsePublicKey(append([]byte("\n  "), append(kp.PublicKey, "\r\n"...)...))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(kp.PublicKey) {
		t.Errorf("got %q, want %q", got, kp.PublicKey)
	}
}
