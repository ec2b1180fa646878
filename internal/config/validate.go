package config

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"restfilter/internal/naming"
	"restfilter/internal/schemafilter"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, hint, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Hint: hint})
}

func (r *ValidationResult) warn(field, hint, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: fmt.Sprintf(format, args...), Hint: hint})
}

// Validate checks the configuration and returns fatal errors and warnings.
// On success Database.Database holds the effective database name.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	validateSchemaFilters(result, c.SchemaFilters)
	validateNaming(result, c.Naming)
	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if d.ConnectionString == "" && (d.Port < 1 || d.Port > 65535) {
		result.fail("database.port", "", "port %d is out of valid range (1-65535)", d.Port)
	}

	switch d.TLS.Mode {
	case "", "off", "verify-ca", "verify-full":
	case "skip-verify":
		result.warn("database.tls.mode", "use verify-ca or verify-full in production", "skip-verify mode does not verify server certificates")
	default:
		result.fail("database.tls.mode", "valid values are: off, skip-verify, verify-ca, verify-full", "invalid TLS mode %q", d.TLS.Mode)
	}
	if (d.TLS.Mode == "verify-ca" || d.TLS.Mode == "verify-full") && d.TLS.CAFile == "" {
		result.fail("database.tls.ca_file", "set database.tls.ca_file", "CA file is required for verify-ca and verify-full modes")
	}
	if (d.TLS.CertFile == "") != (d.TLS.KeyFile == "") {
		result.fail("database.tls.cert_file", "provide both cert_file and key_file, or neither",
			"both cert_file and key_file must be specified for client certificate authentication")
	}

	if d.Pool.MaxOpen < 0 {
		result.fail("database.pool.max_open", "", "max_open cannot be negative")
	}
	if d.Pool.MaxIdle < 0 {
		result.fail("database.pool.max_idle", "", "max_idle cannot be negative")
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.warn("database.pool.max_idle", "idle connections will be limited to max_open", "max_idle is greater than max_open")
	}

	if d.ConnectionTimeout < 0 {
		result.fail("database.connection_timeout", "", "connection_timeout cannot be negative")
	}
	if d.ConnectionRetryInterval < 0 {
		result.fail("database.connection_retry_interval", "", "connection_retry_interval cannot be negative")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval == 0 {
		result.fail("database.connection_retry_interval",
			"set a retry interval such as 2s, or set connection_timeout to 0 to disable retries",
			"connection_retry_interval must be greater than 0 when connection_timeout is set")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval > d.ConnectionTimeout {
		result.warn("database.connection_retry_interval", "only one connection attempt will be made",
			"connection_retry_interval is greater than connection_timeout")
	}
	if d.QueryTimeout < 0 {
		result.fail("database.query_timeout", "use 0 to disable the timeout", "query_timeout cannot be negative")
	}

	name, err := d.EffectiveDatabaseName()
	if err != nil {
		field := "database.database"
		if strings.HasPrefix(err.Error(), "database.dsn") {
			field = "database.dsn"
		}
		result.fail(field, "set database.database or include /<database> in database.dsn", "%s", err.Error())
		return
	}
	d.Database = name
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.fail("server.port", "", "port %d is out of valid range (1-65535)", s.Port)
	}
	if s.APIPrefix != "" && !strings.HasPrefix(s.APIPrefix, "/") {
		result.fail("server.api_prefix", "for example /api", "api_prefix %q must start with /", s.APIPrefix)
	}
	if strings.ContainsAny(s.APIPrefix, "{}") {
		result.fail("server.api_prefix", "", "api_prefix %q cannot contain path wildcards", s.APIPrefix)
	}

	if s.DefaultPageSize <= 0 {
		result.fail("server.default_page_size", "", "default_page_size must be greater than 0")
	}
	if s.MaxPageSize <= 0 {
		result.fail("server.max_page_size", "", "max_page_size must be greater than 0")
	}
	if s.DefaultPageSize > 0 && s.MaxPageSize > 0 && s.DefaultPageSize > s.MaxPageSize {
		result.fail("server.default_page_size", "lower default_page_size or raise max_page_size",
			"default_page_size %d exceeds max_page_size %d", s.DefaultPageSize, s.MaxPageSize)
	}

	if s.CatalogRefreshMinInterval >= 0 {
		if s.CatalogRefreshMinInterval == 0 {
			result.warn("server.catalog_refresh_min_interval", "a negative value disables refresh",
				"catalog_refresh_min_interval is 0; the default will be used")
		}
		if s.CatalogRefreshMaxInterval > 0 && s.CatalogRefreshMaxInterval < s.CatalogRefreshMinInterval {
			result.fail("server.catalog_refresh_max_interval", "",
				"catalog_refresh_max_interval %s is shorter than catalog_refresh_min_interval %s",
				s.CatalogRefreshMaxInterval, s.CatalogRefreshMinInterval)
		}
	}

	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.fail("server.rate_limit_rps", "", "rate_limit_rps must be greater than 0 when rate limiting is enabled")
		}
		if s.RateLimitBurst <= 0 {
			result.fail("server.rate_limit_burst", "", "rate_limit_burst must be greater than 0 when rate limiting is enabled")
		}
	} else if s.RateLimitRPS > 0 || s.RateLimitBurst > 0 {
		result.warn("server.rate_limit_enabled", "enable server.rate_limit_enabled to apply rate limits",
			"rate limit values are set but rate limiting is disabled")
	}

	if s.CORSEnabled {
		if len(s.CORSAllowedOrigins) == 0 {
			result.fail("server.cors_allowed_origins", "set cors_allowed_origins or disable CORS", "CORS enabled but no allowed origins configured")
		}
		wildcard := slices.ContainsFunc(s.CORSAllowedOrigins, func(o string) bool { return strings.TrimSpace(o) == "*" })
		if wildcard && s.CORSAllowCredentials {
			result.fail("server.cors_allowed_origins", "use specific origins with credentials, or wildcard without credentials",
				"wildcard origin (*) cannot be used with credentials")
		}
		if wildcard {
			result.warn("server.cors_allowed_origins", "use specific origins in production", "CORS wildcard origin enabled")
		}
		if !slices.ContainsFunc(s.CORSExposeHeaders, func(h string) bool { return strings.EqualFold(strings.TrimSpace(h), "Content-Range") }) &&
			len(s.CORSExposeHeaders) > 0 {
			result.warn("server.cors_expose_headers", "add Content-Range so browser clients can paginate",
				"Content-Range is not exposed to browsers")
		}
	}

	for _, t := range []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", s.ReadTimeout},
		{"server.write_timeout", s.WriteTimeout},
		{"server.idle_timeout", s.IdleTimeout},
		{"server.shutdown_timeout", s.ShutdownTimeout},
		{"server.health_check_timeout", s.HealthCheckTimeout},
	} {
		if t.value < 0 {
			result.fail(t.field, "", "timeout cannot be negative")
		}
	}
}

func validateSchemaFilters(result *ValidationResult, filters schemafilter.Config) {
	validateGlobList(result, "schema_filters.allow_tables", filters.AllowTables)
	validateGlobList(result, "schema_filters.deny_tables", filters.DenyTables)
	validatePatternMap(result, "schema_filters.allow_columns", filters.AllowColumns)
	validatePatternMap(result, "schema_filters.deny_columns", filters.DenyColumns)
}

var entityNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

func validateNaming(result *ValidationResult, cfg naming.Config) {
	for table, entity := range cfg.EntityOverrides {
		table = strings.TrimSpace(table)
		entity = strings.TrimSpace(entity)
		switch {
		case table == "":
			result.fail("naming.entity_overrides", "", "table name cannot be empty")
		case entity == "":
			result.fail("naming.entity_overrides", "", "entity override for table %q cannot be empty", table)
		case !entityNamePattern.MatchString(entity):
			result.fail("naming.entity_overrides", "", "entity override %q for table %q must be PascalCase", entity, table)
		}
	}
	for _, overrides := range []struct {
		field string
		m     map[string]string
	}{
		{"naming.plural_overrides", cfg.PluralOverrides},
		{"naming.singular_overrides", cfg.SingularOverrides},
	} {
		for from, to := range overrides.m {
			if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
				result.fail(overrides.field, "", "override %q -> %q cannot have an empty side", from, to)
			}
		}
	}
}

func validateGlobList(result *ValidationResult, field string, patterns []string) {
	for _, pattern := range patterns {
		validateGlob(result, field, pattern, "glob pattern")
	}
}

func validatePatternMap(result *ValidationResult, field string, patternMap map[string][]string) {
	for tablePattern, columnPatterns := range patternMap {
		validateGlob(result, field, tablePattern, "table pattern")
		for _, columnPattern := range columnPatterns {
			validateGlob(result, field, columnPattern, fmt.Sprintf("column pattern for table pattern %q", tablePattern))
		}
	}
}

func validateGlob(result *ValidationResult, field, pattern, what string) {
	if strings.TrimSpace(pattern) == "" {
		result.fail(field, "", "%s cannot be empty", what)
		return
	}
	if _, err := path.Match(strings.ToLower(pattern), "probe"); err != nil {
		result.fail(field, "", "invalid %s %q: %v", what, pattern, err)
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	switch o.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		result.fail("observability.logging.level", "valid values are: debug, info, warn, error", "invalid log level %q", o.Logging.Level)
	}
	switch o.Logging.Format {
	case "json", "text":
	default:
		result.fail("observability.logging.format", "valid values are: json, text", "invalid log format %q", o.Logging.Format)
	}
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio", "use a value between 0.0 and 1.0", "trace_sample_ratio %v is out of range", o.TraceSampleRatio)
	}
	if o.SQLCommenterEnabled && !o.TracingEnabled {
		result.warn("observability.sqlcommenter_enabled", "enable observability.tracing_enabled", "sqlcommenter has no trace context to inject while tracing is disabled")
	}

	if o.TracingEnabled {
		o.TracesOTLP().validate("observability.traces", result)
	}
	if o.Logging.ExportsEnabled {
		o.LogsOTLP().validate("observability.logs", result)
	}
}

func (o OTLPConfig) validate(prefix string, result *ValidationResult) {
	switch o.Protocol {
	case "", "grpc":
	case "http/protobuf":
		if !validOTLPEndpoint(o.Endpoint) {
			result.fail(prefix+".endpoint", "use host:port or a full URL", "invalid OTLP endpoint %q for http/protobuf", o.Endpoint)
		}
	default:
		result.fail(prefix+".protocol", "valid values are: grpc, http/protobuf", "invalid OTLP protocol %q", o.Protocol)
	}

	switch o.Compression {
	case "", "none", "gzip":
	default:
		result.fail(prefix+".compression", "valid values are: none, gzip", "invalid OTLP compression %q", o.Compression)
	}
	if o.RetryMaxAttempts < 0 {
		result.fail(prefix+".retry_max_attempts", "", "retry_max_attempts cannot be negative")
	}
	if (o.TLSClientCertFile == "") != (o.TLSClientKeyFile == "") {
		result.fail(prefix+".tls_client_cert_file", "provide both client cert and key, or neither", "client certificate and key must be set together")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		return err == nil && parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
