package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/grit/pkg/repo"
)

const commitSignaturePrefix = "sshsig-v1"

// defaultSigningKeys are tried in order under ~/.ssh when no key is given.
var defaultSigningKeys = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// newSSHCommitSigner loads an unencrypted SSH private key and returns a
// signer producing "sshsig-v1:<format>:<pubkey>:<sig>" strings.
func newSSHCommitSigner(keyPath string) (repo.CommitSigner, string, error) {
	path, err := signingKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", path, err)
	}

	pub := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	sign := func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", err
		}
		blob := base64.StdEncoding.EncodeToString(sig.Blob)
		return strings.Join([]string{commitSignaturePrefix, sig.Format, pub, blob}, ":"), nil
	}
	return sign, path, nil
}

func signingKeyPath(path string) (string, error) {
	if path = strings.TrimSpace(path); path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", path, err)
		}
		return filepath.Abs(expanded)
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	for _, name := range defaultSigningKeys {
		candidate := filepath.Join(home, ".ssh", name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (%s)", strings.Join(defaultSigningKeys, ", "))
}
