package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuslabs/nimbus/internal/config"
	"github.com/nimbuslabs/nimbus/internal/errors"
)

func TestEngineFor(t *testing.T) {
	tests := []struct {
		name     string
		svc      config.Service
		wantName string
		wantUser string
		wantDB   string
		wantErr  bool
	}{
		{
			name:     "postgres with explicit settings",
			svc:      config.Service{Type: "postgres", ComposeService: "database_default", Database: "app", User: "app_user"},
			wantName: "postgres",
			wantUser: "app_user",
			wantDB:   "app",
		},
		{
			name:     "postgres defaults",
			svc:      config.Service{Type: "postgres"},
			wantName: "postgres",
			wantUser: "postgres",
			wantDB:   "db",
		},
		{
			name:     "mysql defaults",
			svc:      config.Service{Type: "mysql", ComposeService: "database_mysql"},
			wantName: "mysql",
			wantUser: "root",
			wantDB:   "db",
		},
		{
			name:    "missing type",
			svc:     config.Service{ComposeService: "database_default"},
			wantErr: true,
		},
		{
			name:    "unsupported type",
			svc:     config.Service{Type: "oracle"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := EngineFor(tt.svc, "DEFAULT")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, engine.Name)
			assert.Equal(t, tt.wantUser, engine.User)
			assert.Equal(t, tt.wantDB, engine.Database)
			assert.Equal(t, ".sql", engine.Extension)
		})
	}
}

func TestPostgresRestoreArgs(t *testing.T) {
	engine, err := EngineFor(config.Service{Type: "postgres", ComposeService: "database_default"}, "DEFAULT")
	require.NoError(t, err)

	args := engine.RestoreArgs()
	assert.Equal(t, []string{"docker", "compose", "exec", "-T", "database_default"}, args[:5])
	assert.Contains(t, args, "psql")
	assert.Contains(t, args, "ON_ERROR_STOP=1")
	// Postgres dumps carry --clean, no separate drop step.
	assert.Nil(t, engine.DropArgs())
}

func TestPostgresDumpArgs(t *testing.T) {
	engine, err := EngineFor(config.Service{Type: "postgres"}, "DEFAULT")
	require.NoError(t, err)

	args := engine.DumpArgs()
	assert.Contains(t, args, "pg_dump")
	assert.Contains(t, args, "--no-owner")
	assert.Contains(t, args, "--clean")
}

func TestMySQLArgs(t *testing.T) {
	engine, err := EngineFor(config.Service{Type: "mysql", Database: "analytics", User: "root"}, "ANALYTICS")
	require.NoError(t, err)

	restore := engine.RestoreArgs()
	assert.Contains(t, restore, "mysql")
	assert.Equal(t, "analytics", restore[len(restore)-1])

	dump := engine.DumpArgs()
	assert.Contains(t, dump, "mysqldump")
	assert.Contains(t, dump, "--single-transaction")

	require.NotNil(t, engine.DropArgs())
}

func TestDumpFilename(t *testing.T) {
	engine, err := EngineFor(config.Service{Type: "postgres"}, "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, "database.sql", engine.DumpFilename())
}
