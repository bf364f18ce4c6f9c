// Package sshkey reads the public key injected into the workload and
// generates throwaway key pairs for ephemeral sessions.
package sshkey

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/kompox/k8socks/domain/model"
)

const (
	privateKeyFile = "id_ed25519_k8socks"
	publicKeyFile  = "id_ed25519_k8socks.pub"
	keyComment     = "k8socks-ephemeral"
)

// ReadPublicKey reads path and returns its trimmed content after checking it
// parses as an authorized_keys line. Failures wrap model.ErrCredentialRead.
func ReadPublicKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read public key %s: %w", model.ErrCredentialRead, path, err)
	}
	return ParsePublicKey(data)
}

// ParsePublicKey validates data as a single authorized key and returns it trimmed.
func ParsePublicKey(data []byte) ([]byte, error) {
	key := bytes.TrimSpace(data)
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: public key is empty", model.ErrCredentialRead)
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey(key); err != nil {
		return nil, fmt.Errorf("%w: parse public key: %w", model.ErrCredentialRead, err)
	}
	return key, nil
}

// KeyPair is an on-disk key pair.
type KeyPair struct {
	PublicKeyPath  string
	PrivateKeyPath string
	PublicKey      []byte
}

// Remove deletes both key files.
func (k *KeyPair) Remove() error {
	errPriv := os.Remove(k.PrivateKeyPath)
	errPub := os.Remove(k.PublicKeyPath)
	if errPriv != nil && !os.IsNotExist(errPriv) {
		return errPriv
	}
	if errPub != nil && !os.IsNotExist(errPub) {
		return errPub
	}
	return nil
}

// GenerateEphemeral writes a fresh ed25519 key pair into dir with mode 0600.
func GenerateEphemeral(dir string) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to generate public SSH key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, keyComment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode private SSH key: %w", err)
	}

	kp := &KeyPair{
		PublicKeyPath:  filepath.Join(dir, publicKeyFile),
		PrivateKeyPath: filepath.Join(dir, privateKeyFile),
		PublicKey:      bytes.TrimSpace(ssh.MarshalAuthorizedKey(sshPub)),
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(kp.PrivateKeyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private SSH key: %w", err)
	}
	if err := os.WriteFile(kp.PublicKeyPath, append(kp.PublicKey, '\n'), 0o600); err != nil {
		_ = os.Remove(kp.PrivateKeyPath)
		return nil, fmt.Errorf("failed to write public SSH key: %w", err)
	}
	return kp, nil
}
