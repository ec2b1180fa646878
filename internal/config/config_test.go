package config

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		config DatabaseConfig
		check  func(t *testing.T, cfg *mysql.Config)
	}{
		{
			name: "discrete fields",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "p@ss:w0rd!",
				Database: "shop",
			},
			check: func(t *testing.T, cfg *mysql.Config) {
				assert.Equal(t, "tcp", cfg.Net)
				assert.Equal(t, "localhost:3306", cfg.Addr)
				assert.Equal(t, "root", cfg.User)
				assert.Equal(t, "p@ss:w0rd!", cfg.Passwd)
				assert.Equal(t, "shop", cfg.DBName)
				assert.True(t, cfg.ParseTime)
				assert.Equal(t, time.UTC, cfg.Loc)
			},
		},
		{
			name:   "connection string gains parseTime",
			config: DatabaseConfig{ConnectionString: "app:secret@tcp(db:4000)/crm?timeout=5s"},
			check: func(t *testing.T, cfg *mysql.Config) {
				assert.Equal(t, "db:4000", cfg.Addr)
				assert.Equal(t, "crm", cfg.DBName)
				assert.True(t, cfg.ParseTime)
				assert.Equal(t, 5*time.Second, cfg.Timeout)
			},
		},
		{
			name: "skip-verify tls",
			config: DatabaseConfig{
				Host: "db", Port: 3306, User: "app", Database: "shop",
				TLS: DatabaseTLSConfig{Mode: "skip-verify"},
			},
			check: func(t *testing.T, cfg *mysql.Config) {
				assert.Equal(t, "skip-verify", cfg.TLSConfig)
			},
		},
		{
			name: "dsn tls wins",
			config: DatabaseConfig{
				ConnectionString: "app@tcp(db:3306)/shop?tls=preferred",
				TLS:              DatabaseTLSConfig{Mode: "verify-full"},
			},
			check: func(t *testing.T, cfg *mysql.Config) {
				assert.Equal(t, "preferred", cfg.TLSConfig)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := tt.config.DSN()
			require.NoError(t, err)
			parsed, err := mysql.ParseDSN(dsn)
			require.NoError(t, err)
			tt.check(t, parsed)
		})
	}
}

func TestDatabaseConfig_DSNRejectsMalformedConnectionString(t *testing.T) {
	_, err := (&DatabaseConfig{ConnectionString: "not a dsn"}).DSN()
	assert.ErrorContains(t, err, "database.dsn is invalid")
}

func TestDatabaseConfig_EffectiveDatabaseName(t *testing.T) {
	name, err := (&DatabaseConfig{Database: "shop"}).EffectiveDatabaseName()
	require.NoError(t, err)
	assert.Equal(t, "shop", name)

	name, err = (&DatabaseConfig{ConnectionString: "u@tcp(h:1)/crm"}).EffectiveDatabaseName()
	require.NoError(t, err)
	assert.Equal(t, "crm", name)

	_, err = (&DatabaseConfig{Database: "shop", ConnectionString: "u@tcp(h:1)/crm"}).EffectiveDatabaseName()
	assert.ErrorContains(t, err, "database mismatch")

	_, err = (&DatabaseConfig{}).EffectiveDatabaseName()
	assert.ErrorContains(t, err, "no database configured")
}

func TestObservabilityConfig_OTLPOverlay(t *testing.T) {
	obs := ObservabilityConfig{
		OTLP: OTLPConfig{
			Endpoint:    "collector:4317",
			Protocol:    "grpc",
			Insecure:    true,
			Headers:     map[string]string{"x-team": "data", "x-env": "prod"},
			Timeout:     10 * time.Second,
			Compression: "gzip",
		},
		Traces: &OTLPConfig{
			Endpoint: "https://traces.example.com",
			Protocol: "http/protobuf",
			Headers:  map[string]string{"x-env": "staging"},
		},
	}

	traces := obs.TracesOTLP()
	assert.Equal(t, "https://traces.example.com", traces.Endpoint)
	assert.Equal(t, "http/protobuf", traces.Protocol)
	assert.False(t, traces.Insecure)
	assert.Equal(t, 10*time.Second, traces.Timeout)
	assert.Equal(t, map[string]string{"x-team": "data", "x-env": "staging"}, traces.Headers)

	assert.Equal(t, obs.OTLP, obs.LogsOTLP())
}

func TestConfig_Validate(t *testing.T) {
	validConfig := func() *Config {
		return &Config{
			Database: DatabaseConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Database: "shop",
				TLS:      DatabaseTLSConfig{Mode: "off"},
				Pool:     PoolConfig{MaxOpen: 25, MaxIdle: 5},
			},
			Server: ServerConfig{
				Port:                      8080,
				APIPrefix:                 "/api",
				DefaultPageSize:           25,
				MaxPageSize:               1000,
				CatalogRefreshMinInterval: 30 * time.Second,
				CatalogRefreshMaxInterval: 5 * time.Minute,
			},
			Observability: ObservabilityConfig{
				TraceSampleRatio: 1,
				Logging:          LoggingConfig{Level: "info", Format: "json"},
				OTLP:             OTLPConfig{Protocol: "grpc", Compression: "gzip"},
			},
		}
	}

	t.Run("valid config passes validation", func(t *testing.T) {
		result := validConfig().Validate()
		assert.False(t, result.HasErrors(), result.Error())
		assert.Empty(t, result.Warnings)
	})

	errorCases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"database port", func(c *Config) { c.Database.Port = 0 }, "database.port"},
		{"tls mode", func(c *Config) { c.Database.TLS.Mode = "invalid" }, "database.tls.mode"},
		{"verify-ca without CA", func(c *Config) { c.Database.TLS.Mode = "verify-ca" }, "database.tls.ca_file"},
		{"cert without key", func(c *Config) { c.Database.TLS.CertFile = "/c.pem" }, "database.tls.cert_file"},
		{"negative query timeout", func(c *Config) { c.Database.QueryTimeout = -time.Second }, "database.query_timeout"},
		{"missing database", func(c *Config) { c.Database.Database = "" }, "database.database"},
		{"server port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"relative prefix", func(c *Config) { c.Server.APIPrefix = "api" }, "server.api_prefix"},
		{"wildcard prefix", func(c *Config) { c.Server.APIPrefix = "/{tenant}" }, "server.api_prefix"},
		{"zero page size", func(c *Config) { c.Server.DefaultPageSize = 0 }, "server.default_page_size"},
		{"default above max", func(c *Config) { c.Server.DefaultPageSize = 2000 }, "server.default_page_size"},
		{"refresh max below min", func(c *Config) { c.Server.CatalogRefreshMaxInterval = time.Second }, "server.catalog_refresh_max_interval"},
		{"rate limit rps", func(c *Config) { c.Server.RateLimitEnabled = true; c.Server.RateLimitBurst = 5 }, "server.rate_limit_rps"},
		{"cors without origins", func(c *Config) { c.Server.CORSEnabled = true }, "server.cors_allowed_origins"},
		{"cors wildcard with credentials", func(c *Config) {
			c.Server.CORSEnabled = true
			c.Server.CORSAllowedOrigins = []string{"*"}
			c.Server.CORSAllowCredentials = true
		}, "server.cors_allowed_origins"},
		{"negative timeout", func(c *Config) { c.Server.WriteTimeout = -time.Second }, "server.write_timeout"},
		{"log level", func(c *Config) { c.Observability.Logging.Level = "invalid" }, "observability.logging.level"},
		{"log format", func(c *Config) { c.Observability.Logging.Format = "xml" }, "observability.logging.format"},
		{"sample ratio", func(c *Config) { c.Observability.TraceSampleRatio = 1.5 }, "observability.trace_sample_ratio"},
		{"trace protocol", func(c *Config) {
			c.Observability.TracingEnabled = true
			c.Observability.OTLP.Protocol = "http"
		}, "observability.traces.protocol"},
		{"http endpoint", func(c *Config) {
			c.Observability.Logging.ExportsEnabled = true
			c.Observability.OTLP.Protocol = "http/protobuf"
			c.Observability.OTLP.Endpoint = "collector"
		}, "observability.logs.endpoint"},
		{"table glob", func(c *Config) { c.SchemaFilters.AllowTables = []string{"[bad"} }, "schema_filters.allow_tables"},
		{"column glob", func(c *Config) { c.SchemaFilters.DenyColumns = map[string][]string{"*": {""}} }, "schema_filters.deny_columns"},
		{"entity override", func(c *Config) { c.Naming.EntityOverrides = map[string]string{"order_items": "order_item"} }, "naming.entity_overrides"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			result := cfg.Validate()
			require.True(t, result.HasErrors())
			assert.Contains(t, result.Error(), tc.field)
		})
	}

	t.Run("database name resolved from dsn", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Database = ""
		cfg.Database.ConnectionString = "app@tcp(db:3306)/crm"
		result := cfg.Validate()
		require.False(t, result.HasErrors(), result.Error())
		assert.Equal(t, "crm", cfg.Database.Database)
	})

	t.Run("negative refresh interval disables refresh checks", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CatalogRefreshMinInterval = -1
		cfg.Server.CatalogRefreshMaxInterval = 0
		assert.False(t, cfg.Validate().HasErrors())
	})

	warningCases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"skip-verify", func(c *Config) { c.Database.TLS.Mode = "skip-verify" }, "database.tls.mode"},
		{"idle above open", func(c *Config) { c.Database.Pool.MaxIdle = 50 }, "database.pool.max_idle"},
		{"rate values while disabled", func(c *Config) { c.Server.RateLimitRPS = 10 }, "server.rate_limit_enabled"},
		{"cors wildcard", func(c *Config) {
			c.Server.CORSEnabled = true
			c.Server.CORSAllowedOrigins = []string{"*"}
		}, "server.cors_allowed_origins"},
		{"content-range hidden", func(c *Config) {
			c.Server.CORSEnabled = true
			c.Server.CORSAllowedOrigins = []string{"https://admin.example.com"}
			c.Server.CORSExposeHeaders = []string{"X-Request-ID"}
		}, "server.cors_expose_headers"},
		{"sqlcommenter without tracing", func(c *Config) { c.Observability.SQLCommenterEnabled = true }, "observability.sqlcommenter_enabled"},
	}
	for _, tc := range warningCases {
		t.Run("warns on "+tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			result := cfg.Validate()
			require.False(t, result.HasErrors(), result.Error())
			require.NotEmpty(t, result.Warnings)
			assert.Equal(t, tc.field, result.Warnings[0].Field)
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "server.port: bad", ValidationError{Field: "server.port", Message: "bad"}.Error())
	assert.Equal(t, "server.port: bad (hint: fix)", ValidationError{Field: "server.port", Message: "bad", Hint: "fix"}.Error())
}
