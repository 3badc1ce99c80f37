package config

// CurrentConfigVersion is the schema version for the project config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// DefaultServicePrefix selects the primary database service when no prefix
// argument is given on the command line.
const DefaultServicePrefix = "DEFAULT"

// Config represents the complete .nimbus.yaml project configuration file.
// It associates a local checkout with a remote application and describes the
// local docker-compose services that back each service prefix.
type Config struct {
	Version            int                `yaml:"version" mapstructure:"version"`
	Application        int                `yaml:"application" mapstructure:"application"`
	Slug               string             `yaml:"slug" mapstructure:"slug"`
	DefaultEnvironment string             `yaml:"default_environment" mapstructure:"default_environment"`
	DumpFolder         string             `yaml:"dump_folder" mapstructure:"dump_folder"`
	MediaFolder        string             `yaml:"media_folder" mapstructure:"media_folder"`
	Services           map[string]Service `yaml:"services" mapstructure:"services"`
}

// Service maps a service prefix to a local docker-compose service.
type Service struct {
	// Type is the database engine backing this prefix: "postgres" or "mysql".
	// Empty for non-database services (e.g. media storage).
	Type string `yaml:"type" mapstructure:"type"`

	// ComposeService is the docker-compose service name to exec into.
	ComposeService string `yaml:"compose_service" mapstructure:"compose_service"`

	// Database is the database name inside the engine.
	Database string `yaml:"database" mapstructure:"database"`

	// User is the database user for dump/restore commands.
	User string `yaml:"user" mapstructure:"user"`
}

// Global represents the per-user configuration stored under
// ~/.config/nimbus/config.yaml: the control panel endpoint and access token.
type Global struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Token    string `yaml:"token" mapstructure:"token"`
}

// DefaultConfig returns a project Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:            CurrentConfigVersion,
		DefaultEnvironment: "test",
		DumpFolder:         ".nimbus/dumps",
		MediaFolder:        "data/media",
		Services: map[string]Service{
			DefaultServicePrefix: {
				Type:           "postgres",
				ComposeService: "database_default",
				Database:       "db",
				User:           "postgres",
			},
		},
	}
}

// DefaultEndpoint is the control panel API endpoint used when the global
// config does not override it.
const DefaultEndpoint = "https://control.nimbus.cloud"

// DefaultGlobal returns a Global config pointing at the public control panel.
func DefaultGlobal() *Global {
	return &Global{Endpoint: DefaultEndpoint}
}
