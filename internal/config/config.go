// Package config holds the runtime settings of the contacts app. Values are taken from built-in
// defaults, then from an optional YAML file, and finally from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverMySQL  = "mysql"
	DriverPgx    = "pgx"
	DriverSQLite = "sqlite"
)

// Config holds all settings of the contacts app.
type Config struct {
	Port     int      `yaml:"port"`
	GinMode  string   `yaml:"gin_mode"`
	Database Database `yaml:"database"`
	Logging  Logging  `yaml:"logging"`
	GraphQL  GraphQL  `yaml:"graphql"`
}

// Database describes how to reach the contact store. DSN, if set, wins over the individual
// connection parameters.
type Database struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	DSN      string `yaml:"dsn"`
	Migrate  bool   `yaml:"migrate"`
}

// Logging configures the zap logger and the HTTP request log.
type Logging struct {
	Level    string `yaml:"level"`
	Requests bool   `yaml:"requests"`
}

// GraphQL configures the endpoint queried by the GraphQL demo page.
type GraphQL struct {
	Endpoint string        `yaml:"endpoint"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Port:    8080,
		GinMode: "release",
		Database: Database{
			Driver:  DriverMySQL,
			Host:    "localhost:3306",
			Name:    "test",
			Migrate: true,
		},
		Logging: Logging{
			Level:    "info",
			Requests: true,
		},
		GraphQL: GraphQL{
			Endpoint: "http://localhost:4000/",
			CacheTTL: 30 * time.Second,
		},
	}
}

// Load builds the configuration. The file argument may be empty, in which case no YAML file is
// read.
func Load(file string) (*Config, error) {
	cfg := Default()
	if file != "" {
		if err := cfg.readFile(file); err != nil {
			return nil, err
		}
	}
	if err := cfg.readEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(file string) error {
	content, err := os.ReadFile(file) // nosemgrep
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", file, err)
	}
	return nil
}

// readEnv applies environment variables. The variable names are the ones the service has always
// used, e.g.
//
//	> PORT=8080 DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF go run main.go
func (c *Config) readEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("could not parse PORT env variable: %w", err)
		}
		c.Port = port
	}
	if v, ok := lookup("GIN_MODE"); ok {
		c.GinMode = v
	}
	if v, ok := lookup("GIN_LOGGING"); ok {
		c.Logging.Requests = !strings.EqualFold(v, "off")
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup("DBDRIVER"); ok {
		c.Database.Driver = v
	}
	if v, ok := lookup("DBHOST"); ok {
		c.Database.Host = v
	}
	if v, ok := lookup("DBUSER"); ok {
		c.Database.User = v
	}
	if v, ok := lookup("DBPWD"); ok {
		c.Database.Password = v
	}
	if v, ok := lookup("DBNAME"); ok {
		c.Database.Name = v
	}
	if v, ok := lookup("DBDSN"); ok {
		c.Database.DSN = v
	}
	if v, ok := lookup("GRAPHQL_ENDPOINT"); ok {
		c.GraphQL.Endpoint = v
	}
	if v, ok := lookup("GRAPHQL_CACHE_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("could not parse GRAPHQL_CACHE_TTL env variable: %w", err)
		}
		c.GraphQL.CacheTTL = ttl
	}
	return nil
}

// Validate checks the values that cannot be corrected later on.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid gin mode %q", c.GinMode)
	}
	switch c.Database.Driver {
	case DriverMySQL, DriverPgx, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == DriverMySQL && c.Database.DSN != "" {
		if _, err := mysql.ParseDSN(c.Database.DSN); err != nil {
			return fmt.Errorf("invalid mysql dsn: %w", err)
		}
	}
	if c.GraphQL.CacheTTL < 0 {
		return fmt.Errorf("invalid graphql cache ttl %s", c.GraphQL.CacheTTL)
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// DataSourceName returns the driver specific connection string. A MySQL DSN given by the user
// gets the parameters the store depends on added.
func (d Database) DataSourceName() string {
	if d.DSN != "" {
		if d.Driver == DriverMySQL {
			if cfg, err := mysql.ParseDSN(d.DSN); err == nil {
				return mysqlDSN(cfg)
			}
		}
		return d.DSN
	}
	switch d.Driver {
	case DriverPgx:
		u := url.URL{
			Scheme:   "postgres",
			Host:     d.Host,
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		return u.String()
	case DriverSQLite:
		if d.Name == "" {
			return ":memory:"
		}
		return d.Name
	default:
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = d.Host
		cfg.DBName = d.Name
		return mysqlDSN(cfg)
	}
}

func mysqlDSN(cfg *mysql.Config) string {
	cfg.ParseTime = true
	// Rows that match but do not change still count, so an update that writes the current
	// value is not mistaken for a missing contact.
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}
