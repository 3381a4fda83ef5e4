// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Live modes select how journey writes reach live subscribers.
const (
	LiveModeChangeStream = "changestream" // watch the journeys change stream (replica set required)
	LiveModeLocal        = "local"        // re-snapshot after writes made by this process
)

// AppConfig holds service-specific configuration for TeLlevo.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). Framework-level settings such
// as ports, TLS, logging and CORS live in WAFFLE's CoreConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Browser session cookie
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name (default: tellevo-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Auth tokens and sessions
	TokenSecret            string        // HMAC secret for signed auth tokens
	TokenTTL               time.Duration // Token and session lifetime
	SessionCleanupInterval time.Duration // How often expired/idle sessions are closed
	SessionIdleTimeout     time.Duration // Close sessions idle for longer than this (0 disables)

	// Login rate limiting
	LoginIPLimit     int
	LoginIPWindow    time.Duration
	LoginEmailLimit  int
	LoginEmailWindow time.Duration

	// Journeys and live updates
	LiveMode     string        // "changestream" or "local"
	RouteStride  int           // keep every Nth route point
	GuardTimeout time.Duration // one-shot auth state lookups

	// Email/SMTP configuration (mail is disabled when MailSMTPHost is empty)
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Password reset links
	SiteName            string
	BaseURL             string // e.g., "https://tellevo.example" or "http://localhost:8080"
	PasswordResetExpiry time.Duration

	// Audit logging destinations: "all", "db", "log" or "off"
	AuditLogAuth     string
	AuditLogJourneys string

	// Journey event publishing (disabled when AMQPURL is empty)
	AMQPURL      string
	AMQPExchange string
}
