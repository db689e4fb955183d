package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/semmidev/stowaway/internal/domain"
)

// SCPCopier copies a remote tree by running the local scp binary. scp opens
// its own connection and authenticates on its own.
type SCPCopier struct {
	binary         string
	policy         HostKeyPolicy
	knownHostsFile string
	identityFile   string
}

func NewSCPCopier(policy HostKeyPolicy, knownHostsFile, identityFile string) *SCPCopier {
	return &SCPCopier{
		binary:         "scp",
		policy:         policy,
		knownHostsFile: knownHostsFile,
		identityFile:   identityFile,
	}
}

func (c *SCPCopier) CopyTree(ctx context.Context, params domain.ConnectionParams, remotePath, localDir string) error {
	cmd := exec.CommandContext(ctx, c.binary, c.args(params, remotePath, localDir)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("scp failed: %w, output: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *SCPCopier) args(params domain.ConnectionParams, remotePath, localDir string) []string {
	args := []string{"-r", "-B", "-P", strconv.Itoa(params.Port)}

	switch c.policy {
	case PolicyStrict:
		args = append(args, "-o", "StrictHostKeyChecking=yes")
	case PolicyTOFU:
		args = append(args, "-o", "StrictHostKeyChecking=accept-new")
	case PolicyAcceptAny:
		args = append(args, "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null")
	}
	if c.knownHostsFile != "" && c.policy != PolicyAcceptAny {
		args = append(args, "-o", "UserKnownHostsFile="+c.knownHostsFile)
	}
	if c.identityFile != "" {
		args = append(args, "-i", c.identityFile)
	}

	source := fmt.Sprintf("%s@%s:%s", params.User, hostForSCP(params.Host), remotePath)
	return append(args, source, localDir)
}

// hostForSCP brackets IPv6 literals so scp does not split on their colons.
func hostForSCP(host string) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return "[" + host + "]"
	}
	return host
}
