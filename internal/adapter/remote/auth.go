package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// AuthConfig lists the credentials offered to the server, in order.
type AuthConfig struct {
	UseAgent     bool
	IdentityFile string
	Passphrase   string
	Password     string
}

var defaultIdentities = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// authMethods returns the ssh auth methods and a closer for the agent
// connection, if one was opened.
func authMethods(cfg AuthConfig) ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod
	closer := func() {}

	if cfg.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			conn, err := net.Dial("unix", sock)
			if err == nil {
				client := agent.NewClient(conn)
				methods = append(methods, ssh.PublicKeysCallback(client.Signers))
				closer = func() { _ = conn.Close() }
			}
		}
	}

	signers, err := identitySigners(cfg)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}

	if len(methods) == 0 {
		closer()
		return nil, nil, errors.New("no ssh credentials available: configure an agent, identity_file or password")
	}

	return methods, closer, nil
}

func identitySigners(cfg AuthConfig) ([]ssh.Signer, error) {
	if cfg.IdentityFile != "" {
		signer, err := loadSigner(cfg.IdentityFile, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		return []ssh.Signer{signer}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil
	}

	var signers []ssh.Signer
	for _, name := range defaultIdentities {
		signer, err := loadSigner(filepath.Join(home, ".ssh", name), cfg.Passphrase)
		if err != nil {
			// Missing or encrypted default keys are skipped.
			continue
		}
		signers = append(signers, signer)
	}
	return signers, nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity %s: %w", path, err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pemBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity %s: %w", path, err)
	}
	return signer, nil
}
