// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/tellevo/internal/app/store/audit"
	"github.com/dalemusser/tellevo/internal/app/store/credentials"
	journeystore "github.com/dalemusser/tellevo/internal/app/store/journeys"
	"github.com/dalemusser/tellevo/internal/app/store/resets"
	"github.com/dalemusser/tellevo/internal/app/store/sessions"
	userstore "github.com/dalemusser/tellevo/internal/app/store/users"
	"github.com/dalemusser/tellevo/internal/app/system/auditlog"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/events"
	"github.com/dalemusser/tellevo/internal/app/system/identity"
	"github.com/dalemusser/tellevo/internal/app/system/mailer"
	"github.com/dalemusser/tellevo/internal/app/system/ratelimit"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"github.com/dalemusser/tellevo/internal/app/system/workers"
	"github.com/dalemusser/tellevo/internal/app/system/wsstream"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// services is everything built once at startup and shared by the handlers.
type services struct {
	Users    *userstore.Store
	Journeys *journeystore.Store
	Sessions *sessions.Store
	Audit    *auditlog.Logger
	Auth     *auth.Session
	Limiter  *ratelimit.LoginLimiter
	Events   events.Publisher
	Streamer *wsstream.Streamer

	watcher *workers.ChangeWatcher
	cleanup *workers.SessionCleanup
	log     *zap.Logger
}

// active is set by Startup and read by BuildHandler and Shutdown.
var active *services

// Startup builds the auth session, the journey store with its live feed,
// and the background workers. It runs after ConnectDB and EnsureSchema and
// before BuildHandler.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	svc, err := newServices(ctx, appCfg, deps, coreCfg.Env == "prod", logger)
	if err != nil {
		return err
	}
	active = svc
	return nil
}

func newServices(ctx context.Context, appCfg AppConfig, deps DBDeps, secure bool, logger *zap.Logger) (*services, error) {
	timeouts.Configure(timeouts.Config{Guard: appCfg.GuardTimeout})

	db := deps.MongoDatabase
	svc := &services{
		Users:    userstore.New(db),
		Sessions: sessions.New(db),
		log:      logger,
	}
	svc.Audit = auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:     appCfg.AuditLogAuth,
		Journeys: appCfg.AuditLogJourneys,
	})
	svc.Journeys = journeystore.New(db, svc.Users, logger, journeystore.Options{
		Stride:        appCfg.RouteStride,
		NotifyOnWrite: appCfg.LiveMode == LiveModeLocal,
	})

	var mail identity.Sender
	if appCfg.MailSMTPHost != "" {
		mail = mailer.New(mailer.Config{
			Host:     appCfg.MailSMTPHost,
			Port:     appCfg.MailSMTPPort,
			User:     appCfg.MailSMTPUser,
			Pass:     appCfg.MailSMTPPass,
			From:     appCfg.MailFrom,
			FromName: appCfg.MailFromName,
		}, logger)
	} else {
		logger.Warn("mail disabled; password reset links will not be sent")
	}
	provider := identity.NewMongoProvider(
		credentials.New(db),
		resets.New(db, appCfg.PasswordResetExpiry),
		mail,
		identity.Config{SiteName: appCfg.SiteName, BaseURL: appCfg.BaseURL, BcryptCost: bcrypt.DefaultCost},
		logger,
	)

	tokens, err := auth.NewTokens(appCfg.TokenSecret, appCfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth tokens: %w", err)
	}
	cookies, err := auth.NewCookieManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		return nil, fmt.Errorf("session cookies: %w", err)
	}
	svc.Auth = auth.NewSession(auth.Deps{
		Identity: provider,
		Profiles: svc.Users,
		Sessions: svc.Sessions,
		Tokens:   tokens,
		Cookies:  cookies,
		Audit:    svc.Audit,
		Log:      logger,
	})

	limits := ratelimit.DefaultLoginConfig
	if appCfg.LoginIPLimit > 0 {
		limits.IPLimit, limits.IPWindow = appCfg.LoginIPLimit, appCfg.LoginIPWindow
	}
	if appCfg.LoginEmailLimit > 0 {
		limits.EmailLimit, limits.EmailWindow = appCfg.LoginEmailLimit, appCfg.LoginEmailWindow
	}
	svc.Limiter = ratelimit.NewLoginLimiter(limits)

	svc.Events = events.Noop{}
	if appCfg.AMQPURL != "" {
		pub, err := events.Connect(ctx, events.Config{URL: appCfg.AMQPURL, Exchange: appCfg.AMQPExchange}, logger)
		if err != nil {
			svc.close()
			return nil, fmt.Errorf("journey events: %w", err)
		}
		svc.Events = pub
	}

	svc.Streamer = wsstream.New(wsstream.Config{}, logger)

	svc.Journeys.Feed().Start()
	if appCfg.LiveMode == LiveModeChangeStream {
		svc.watcher = workers.NewChangeWatcher(svc.Journeys.Collection(), svc.Journeys.Feed().Notify, logger)
		svc.watcher.Start()
	}
	svc.cleanup = workers.NewSessionCleanup(svc.Sessions, svc.Auth.SessionEnded, logger,
		appCfg.SessionCleanupInterval, appCfg.SessionIdleTimeout)
	svc.cleanup.Start()

	logger.Info("tellevo services started",
		zap.String("live_mode", appCfg.LiveMode),
		zap.Int("route_stride", appCfg.RouteStride),
		zap.Bool("mail", mail != nil),
		zap.Bool("events", appCfg.AMQPURL != ""))
	return svc, nil
}

// close stops the workers and the live feed, then releases the auth
// session, the limiter and the event publisher. It tolerates a partially
// built services value.
func (s *services) close() {
	if s.cleanup != nil {
		s.cleanup.Stop()
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.Journeys != nil {
		s.Journeys.Feed().Stop()
	}
	if s.Auth != nil {
		s.Auth.Close()
	}
	if s.Limiter != nil {
		s.Limiter.Stop()
	}
	if s.Events != nil {
		if err := s.Events.Close(); err != nil {
			s.log.Warn("closing event publisher", zap.Error(err))
		}
	}
}
