// Package db resolves which local database engine backs a service prefix and
// drives dump/restore through the engine's client tools inside the local
// docker-compose stack.
package db

import (
	"github.com/nimbuslabs/nimbus/internal/config"
	"github.com/nimbuslabs/nimbus/internal/errors"
)

// Engine describes a local database engine: how to dump it, how to restore
// it, and what file extension its dumps carry. Resolved once from project
// configuration at workflow start and read-only afterwards.
type Engine struct {
	// Name is the engine type: "postgres" or "mysql".
	Name string

	// Extension is the dump file extension including the dot.
	Extension string

	// ComposeService is the docker-compose service to exec into.
	ComposeService string

	// Database and User parameterize the client commands.
	Database string
	User     string
}

// EngineFor resolves the engine descriptor for a service prefix.
func EngineFor(svc config.Service, prefix string) (*Engine, error) {
	e := &Engine{
		ComposeService: svc.ComposeService,
		Database:       svc.Database,
		User:           svc.User,
	}

	switch svc.Type {
	case "postgres":
		e.Name = "postgres"
		e.Extension = ".sql"
		if e.Database == "" {
			e.Database = "db"
		}
		if e.User == "" {
			e.User = "postgres"
		}
	case "mysql":
		e.Name = "mysql"
		e.Extension = ".sql"
		if e.Database == "" {
			e.Database = "db"
		}
		if e.User == "" {
			e.User = "root"
		}
	case "":
		return nil, errors.New(errors.ErrConfig,
			"Service prefix '"+prefix+"' has no database type",
			"Set 'type: postgres' or 'type: mysql' in "+config.ConfigFileName)
	default:
		return nil, errors.New(errors.ErrConfig,
			"Unsupported database type '"+svc.Type+"' for prefix '"+prefix+"'",
			"Supported types: postgres, mysql")
	}

	if e.ComposeService == "" {
		e.ComposeService = "database_default"
	}

	return e, nil
}

// composePrefix is the shared docker-compose exec preamble. -T disables TTY
// allocation so stdin/stdout can be piped.
func (e *Engine) composePrefix() []string {
	return []string{"docker", "compose", "exec", "-T", e.ComposeService}
}

// RestoreArgs builds the command that restores a dump fed on stdin,
// replacing existing local data.
func (e *Engine) RestoreArgs() []string {
	switch e.Name {
	case "mysql":
		return append(e.composePrefix(), "mysql", "-u", e.User, e.Database)
	default:
		return append(e.composePrefix(),
			"psql", "-U", e.User, "-d", e.Database, "--set", "ON_ERROR_STOP=1")
	}
}

// DumpArgs builds the command that writes a dump of the local database to
// stdout.
func (e *Engine) DumpArgs() []string {
	switch e.Name {
	case "mysql":
		return append(e.composePrefix(),
			"mysqldump", "-u", e.User, "--single-transaction", e.Database)
	default:
		return append(e.composePrefix(),
			"pg_dump", "-U", e.User, "-d", e.Database,
			"--no-owner", "--no-privileges", "--clean", "--if-exists")
	}
}

// DumpFilename is the canonical name for this engine's dump inside a
// workspace or dump folder.
func (e *Engine) DumpFilename() string {
	return "database" + e.Extension
}

// DropArgs builds the command that wipes the local database before a
// restore. Postgres dumps produced with --clean handle this themselves, so
// it is only used for engines whose dumps don't.
func (e *Engine) DropArgs() []string {
	switch e.Name {
	case "mysql":
		return append(e.composePrefix(),
			"mysql", "-u", e.User, "-e",
			"DROP DATABASE IF EXISTS "+e.Database+"; CREATE DATABASE "+e.Database+";")
	default:
		return nil
	}
}
