package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type HostKeyPolicy string

const (
	// PolicyStrict only accepts hosts already listed in known_hosts.
	PolicyStrict HostKeyPolicy = "strict"
	// PolicyTOFU records unknown hosts on first use and rejects key changes.
	PolicyTOFU HostKeyPolicy = "tofu"
	// PolicyAcceptAny trusts every host key. It must be chosen explicitly.
	PolicyAcceptAny HostKeyPolicy = "accept-any"
)

type warner interface {
	Warnf(template string, args ...interface{})
}

// HostKeyCallback builds the ssh host key check for policy.
func HostKeyCallback(policy HostKeyPolicy, knownHostsFile string, log warner) (ssh.HostKeyCallback, error) {
	switch policy {
	case PolicyAcceptAny:
		return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			log.Warnf("Accepting unverified host key %s for %s (host_key_policy=accept-any)",
				ssh.FingerprintSHA256(key), hostname)
			return nil
		}, nil

	case PolicyStrict:
		cb, err := knownhosts.New(knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", knownHostsFile, err)
		}
		return cb, nil

	case PolicyTOFU:
		if err := ensureFile(knownHostsFile); err != nil {
			return nil, err
		}
		return newTOFU(knownHostsFile, log).check, nil

	default:
		return nil, fmt.Errorf("unknown host key policy %q", policy)
	}
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create known hosts directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known hosts %s: %w", path, err)
	}
	return f.Close()
}

type tofu struct {
	mu   sync.Mutex
	path string
	log  warner
}

func newTOFU(path string, log warner) *tofu {
	return &tofu{path: path, log: log}
}

func (t *tofu) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Reload every time so hosts appended earlier in the process are seen.
	cb, err := knownhosts.New(t.path)
	if err != nil {
		return fmt.Errorf("failed to load known hosts %s: %w", t.path, err)
	}

	err = cb(hostname, remote, key)
	var keyErr *knownhosts.KeyError
	if err == nil || !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
		return err
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known hosts %s: %w", t.path, err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}

	t.log.Warnf("Trusted new host key %s for %s on first use", ssh.FingerprintSHA256(key), hostname)
	return nil
}
