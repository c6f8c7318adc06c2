package config

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
)

// problems collects validation failures so all of them are reported at once.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	var p problems

	db := c.Database
	p.check(db.URL != "", "DATABASE_URL is required")
	p.check(db.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(db.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	p.check(db.MaxConns >= db.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)

	srv := c.Server
	p.check(srv.Port > 0 && srv.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", srv.Port)
	p.check(srv.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(srv.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	up := c.Upload
	p.check(up.MaxFileSize > 0, "UPLOAD_MAX_FILE_SIZE must be positive")
	p.check(up.BatchSize > 0, "UPLOAD_BATCH_SIZE must be positive")
	p.check(cleaning.IsSupported(up.DefaultRegion), "UPLOAD_DEFAULT_REGION (%q) is not a supported region", up.DefaultRegion)

	proc := c.Processing
	p.check(proc.MaxConcurrent > 0, "PROCESS_MAX_CONCURRENT must be positive")
	p.check(proc.MaxWaitTime > 0, "PROCESS_MAX_WAIT_TIME must be positive")
	p.check(proc.Workers >= 0, "PROCESS_WORKERS must be non-negative")
	p.check(proc.Timeout > 0, "PROCESS_TIMEOUT must be positive")

	if e := c.Enhance; e.Enabled {
		p.check(e.APIKey != "", "LLM_API_KEY is required when LLM_ENABLED is true")
		p.check(e.GroupSize > 0, "LLM_GROUP_SIZE must be positive")
		p.check(e.Timeout > 0, "LLM_TIMEOUT must be positive")
		p.check(e.RequestsPerMinute >= 0, "LLM_REQUESTS_PER_MINUTE must be non-negative")
	}

	switch st := c.Storage; strings.ToLower(st.Backend) {
	case "local":
		p.check(st.LocalDir != "", "STORAGE_LOCAL_DIR is required for the local backend")
	case "azure":
		p.check(st.ConnectionString != "", "AZURE_STORAGE_CONNECTION_STRING is required for the azure backend")
		p.check(st.Container != "", "STORAGE_CONTAINER is required for the azure backend")
	default:
		p.check(false, "STORAGE_BACKEND (%q) must be one of: local, azure", st.Backend)
	}

	if c.Rate.Enabled {
		p.check(c.Rate.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		p.check(c.Rate.UploadLimit > 0, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	arc := c.Archive
	p.check(arc.RetentionDays > 0, "AUDIT_RETENTION_DAYS must be positive")
	p.check(arc.BatchSize > 0, "AUDIT_PURGE_BATCH must be positive")
	p.check(arc.CheckInterval > 0, "AUDIT_PURGE_INTERVAL must be positive")

	p.check(c.Security.DefaultUserID > 0, "DEFAULT_USER_ID must be positive")

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.check(false, "LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		p.check(false, "LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}
