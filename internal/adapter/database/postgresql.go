package database

import (
	"github.com/kballard/go-shellquote"

	"github.com/semmidev/stowaway/internal/config"
)

// PostgreSQLCluster builds the remote commands that dump a whole cluster as
// the database service account.
type PostgreSQLCluster struct {
	config *config.DatabaseConfig
}

func NewPostgreSQL(cfg *config.DatabaseConfig) *PostgreSQLCluster {
	return &PostgreSQLCluster{config: cfg}
}

// DumpCommand returns a pg_dumpall invocation that writes a plain SQL script,
// with DROP statements, to outputPath.
func (p *PostgreSQLCluster) DumpCommand(outputPath string) string {
	return shellquote.Join(
		"sudo", "-u", p.config.ServiceAccount,
		"pg_dumpall",
		"-c",
		"-f", outputPath,
	)
}

func (p *PostgreSQLCluster) ServiceAccount() string {
	return p.config.ServiceAccount
}

func (p *PostgreSQLCluster) GetType() string {
	return "postgresql"
}
