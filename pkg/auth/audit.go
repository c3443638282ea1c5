package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/pastebin/pkg/contextkeys"
	"github.com/platinummonkey/pastebin/pkg/observability"
)

// AuditEvent is one security-relevant account or token event
type AuditEvent struct {
	Action     string
	Status     string
	UserID     int64
	TokenIdent string
	IPAddress  string
	UserAgent  string
	Error      string
	CreatedAt  time.Time
}

// AuditLogger writes security audit events to the structured log
type AuditLogger struct {
	logger *observability.Logger
	clock  clockwork.Clock
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *observability.Logger, clock clockwork.Clock) *AuditLogger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuditLogger{logger: logger.WithField("component", "audit"), clock: clock}
}

// Log records an audit event
func (al *AuditLogger) Log(ctx context.Context, ev AuditEvent) error {
	if ev.Action == "" {
		return fmt.Errorf("action is required")
	}
	if ev.Status == "" {
		return fmt.Errorf("status is required")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = al.clock.Now()
	}

	fields := map[string]interface{}{
		"action":     ev.Action,
		"status":     ev.Status,
		"created_at": ev.CreatedAt.UTC().Format(time.RFC3339),
	}
	if ev.UserID != 0 {
		fields["user_id"] = ev.UserID
	}
	if ev.TokenIdent != "" {
		fields["token_ident"] = ev.TokenIdent
	}
	if ev.IPAddress != "" {
		fields["ip"] = ev.IPAddress
	}
	if ev.UserAgent != "" {
		fields["user_agent"] = ev.UserAgent
	}
	if ev.Error != "" {
		fields["error"] = ev.Error
	}

	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}

	al.logger.WithFields(fields).Info("audit")
	return nil
}

// LogFromRequest fills the client details from r and records the event
func (al *AuditLogger) LogFromRequest(r *http.Request, action, status string, userID int64, err error) error {
	ev := AuditEvent{
		Action:    action,
		Status:    status,
		UserID:    userID,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return al.Log(r.Context(), ev)
}

// ClientIP returns the best guess at the caller's address
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Audit action constants
const (
	ActionSignup         = "user.signup"
	ActionLogin          = "user.login"
	ActionLogout         = "user.logout"
	ActionPasswordChange = "user.password_change"
	ActionRename         = "user.rename"
	ActionProfileUpdate  = "user.profile_update"
	ActionUserDelete     = "user.delete"
	ActionTokenCreate    = "token.create"
	ActionTokenEdit      = "token.edit"
	ActionTokenDelete    = "token.delete"
	ActionAuthFailure    = "auth.failure"
	ActionRateLimited    = "ratelimit.exceeded"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
