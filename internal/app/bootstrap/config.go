// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/tellevo/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for TeLlevo.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, token_secret, etc.
//   - Environment variables: TELLEVO_MONGO_URI, TELLEVO_TOKEN_SECRET, etc.
//   - Command-line flags: --mongo_uri, --token_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "tellevo", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Browser session cookie
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session cookie signing key (must be strong in production)"},
	{Name: "session_name", Default: "tellevo-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// Auth tokens and sessions
	{Name: "token_secret", Default: "dev-only-token-secret-0123456789ABCDEF", Desc: "HMAC secret for auth tokens (32+ chars)"},
	{Name: "token_ttl", Default: "24h", Desc: "Auth token and session lifetime"},
	{Name: "session_cleanup_interval", Default: "5m", Desc: "How often expired or idle sessions are closed"},
	{Name: "session_idle_timeout", Default: "12h", Desc: "Close sessions idle longer than this (0 disables)"},

	// Login rate limiting
	{Name: "login_ip_limit", Default: 10, Desc: "Login attempts allowed per IP per window"},
	{Name: "login_ip_window", Default: "1m", Desc: "Per-IP login window"},
	{Name: "login_email_limit", Default: 5, Desc: "Login attempts allowed per email per window"},
	{Name: "login_email_window", Default: "5m", Desc: "Per-email login window"},

	// Journeys and live updates
	{Name: "live_mode", Default: LiveModeChangeStream, Desc: "Live update source: 'changestream' (replica set) or 'local'"},
	{Name: "route_stride", Default: 5, Desc: "Keep every Nth point of a submitted route"},
	{Name: "guard_timeout", Default: "5s", Desc: "Timeout for one-shot auth state lookups"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host (blank disables email)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@tellevo.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "TeLlevo", Desc: "From display name"},

	// Password reset links
	{Name: "site_name", Default: "TeLlevo", Desc: "Site name used in emails"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Base URL for email links"},
	{Name: "password_reset_expiry", Default: "1h", Desc: "Password reset link expiry (e.g., 30m, 1h)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_journeys", Default: "all", Desc: "Journey event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Journey events
	{Name: "amqp_url", Default: "", Desc: "RabbitMQ URL for journey events (blank disables publishing)"},
	{Name: "amqp_exchange", Default: "tellevo.journeys", Desc: "RabbitMQ topic exchange for journey events"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, TELLEVO_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TELLEVO", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		TokenSecret:            appValues.String("token_secret"),
		TokenTTL:               appValues.Duration("token_ttl", 24*time.Hour),
		SessionCleanupInterval: appValues.Duration("session_cleanup_interval", 5*time.Minute),
		SessionIdleTimeout:     appValues.Duration("session_idle_timeout", 12*time.Hour),

		LoginIPLimit:     appValues.Int("login_ip_limit"),
		LoginIPWindow:    appValues.Duration("login_ip_window", time.Minute),
		LoginEmailLimit:  appValues.Int("login_email_limit"),
		LoginEmailWindow: appValues.Duration("login_email_window", 5*time.Minute),

		LiveMode:     appValues.String("live_mode"),
		RouteStride:  appValues.Int("route_stride"),
		GuardTimeout: appValues.Duration("guard_timeout", 5*time.Second),

		// Email/SMTP
		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		SiteName:            appValues.String("site_name"),
		BaseURL:             appValues.String("base_url"),
		PasswordResetExpiry: appValues.Duration("password_reset_expiry", time.Hour),

		// Audit logging
		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditLogJourneys: appValues.String("audit_log_journeys"),

		AMQPURL:      appValues.String("amqp_url"),
		AMQPExchange: appValues.String("amqp_exchange"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// It rejects a malformed MongoDB URI, an unknown live mode or audit
// destination, and a token secret too short to sign with, so that startup
// fails before anything connects.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	var errs []error
	if len(appCfg.TokenSecret) < 32 {
		errs = append(errs, fmt.Errorf("token_secret must be at least 32 characters, got %d", len(appCfg.TokenSecret)))
	}
	if appCfg.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if appCfg.SessionCleanupInterval <= 0 {
		errs = append(errs, errors.New("session_cleanup_interval must be positive"))
	}
	switch appCfg.LiveMode {
	case LiveModeChangeStream, LiveModeLocal:
	default:
		errs = append(errs, fmt.Errorf("live_mode must be %q or %q, got %q", LiveModeChangeStream, LiveModeLocal, appCfg.LiveMode))
	}
	if appCfg.RouteStride < 1 {
		errs = append(errs, fmt.Errorf("route_stride must be at least 1, got %d", appCfg.RouteStride))
	}
	for name, v := range map[string]string{
		"audit_log_auth":     appCfg.AuditLogAuth,
		"audit_log_journeys": appCfg.AuditLogJourneys,
	} {
		switch v {
		case "", auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			errs = append(errs, fmt.Errorf("%s must be one of all, db, log, off; got %q", name, v))
		}
	}
	if appCfg.MailSMTPHost != "" && appCfg.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required when mail is enabled"))
	}

	if err := errors.Join(errs...); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}
	return nil
}
