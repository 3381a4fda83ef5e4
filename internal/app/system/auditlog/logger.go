// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/tellevo/internal/app/store/audit"
	"github.com/dalemusser/tellevo/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations per category.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off"
)

// Config picks a destination per event category.
type Config struct {
	Auth     string
	Journeys string
}

// Logger writes audit events to MongoDB and zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

// Client identifies the caller behind an event.
type Client struct {
	IP        string
	UserAgent string
}

type clientKey struct{}

// WithClient stores r's client details in ctx.
func WithClient(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, clientKey{}, Client{IP: ratelimit.ClientIP(r), UserAgent: r.UserAgent()})
}

// ClientFrom returns the client stored by WithClient.
func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

// Middleware records the client on every request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), r)))
	})
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.JourneyID != "" {
		fields = append(fields, zap.String("journey_id", event.JourneyID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the category's destination. A nil Logger
// is a no-op so tests can omit auditing.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryJourney:
		setting = l.config.Journeys
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if event.IP == "" && event.UserAgent == "" {
		c := ClientFrom(ctx)
		event.IP, event.UserAgent = c.IP, c.UserAgent
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(context.WithoutCancel(ctx), event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

// --- Authentication Events ---

func (l *Logger) RegisterSuccess(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventRegisterSuccess,
		UserID:    &userID,
		Email:     email,
		Success:   true,
	})
}

func (l *Logger) RegisterFailed(ctx context.Context, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventRegisterFailed,
		Email:         email,
		FailureReason: reason,
	})
}

func (l *Logger) LoginSuccess(ctx context.Context, userID primitive.ObjectID, email, sessionID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		Email:     email,
		Success:   true,
		Details:   map[string]string{"session_id": sessionID},
	})
}

// LoginFailed records a failed sign-in. eventType is one of the
// audit.EventLoginFailed* constants.
func (l *Logger) LoginFailed(ctx context.Context, eventType, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		Email:         email,
		FailureReason: reason,
	})
}

func (l *Logger) Logout(ctx context.Context, email, sessionID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		Email:     email,
		Success:   true,
		Details:   map[string]string{"session_id": sessionID},
	})
}

func (l *Logger) SessionExpired(ctx context.Context, sessionID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventSessionExpired,
		Success:   true,
		Details:   map[string]string{"session_id": sessionID},
	})
}

func (l *Logger) PasswordResetRequested(ctx context.Context, email string, err error) {
	e := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventPasswordResetRequested,
		Email:     email,
		Success:   err == nil,
	}
	if err != nil {
		e.FailureReason = err.Error()
	}
	l.Log(ctx, e)
}

func (l *Logger) PasswordResetCompleted(ctx context.Context, err error) {
	e := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventPasswordResetCompleted,
		Success:   true,
	}
	if err != nil {
		e.EventType = audit.EventPasswordResetFailed
		e.Success = false
		e.FailureReason = err.Error()
	}
	l.Log(ctx, e)
}

// --- Journey Events ---

func (l *Logger) JourneyCreated(ctx context.Context, email, journeyID string, capacity, points int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryJourney,
		EventType: audit.EventJourneyCreated,
		Email:     email,
		JourneyID: journeyID,
		Success:   true,
		Details: map[string]string{
			"capacity": strconv.Itoa(capacity),
			"points":   strconv.Itoa(points),
		},
	})
}

func (l *Logger) JourneyJoined(ctx context.Context, email, journeyID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryJourney,
		EventType: audit.EventJourneyJoined,
		Email:     email,
		JourneyID: journeyID,
		Success:   true,
	})
}

func (l *Logger) JourneyJoinRejected(ctx context.Context, email, journeyID string, reason error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryJourney,
		EventType:     audit.EventJourneyJoinRejected,
		Email:         email,
		JourneyID:     journeyID,
		FailureReason: reason.Error(),
	})
}

func (l *Logger) JourneyLeft(ctx context.Context, email, journeyID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryJourney,
		EventType: audit.EventJourneyLeft,
		Email:     email,
		JourneyID: journeyID,
		Success:   true,
	})
}

func (l *Logger) JourneyDeleted(ctx context.Context, email, journeyID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryJourney,
		EventType: audit.EventJourneyDeleted,
		Email:     email,
		JourneyID: journeyID,
		Success:   true,
	})
}

func (l *Logger) JourneyDeleteDenied(ctx context.Context, email, journeyID string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryJourney,
		EventType:     audit.EventJourneyDeleteDenied,
		Email:         email,
		JourneyID:     journeyID,
		FailureReason: "not the driver",
	})
}
