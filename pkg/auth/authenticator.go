package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/platinummonkey/pastebin/pkg/observability"
)

// Credential carriers
const (
	HeaderAuthorization = "Authorization"
	CookieSession       = "token"
	CookieSecureSession = "securetoken"
)

// ErrNoCredential is the rejection reason when nothing was presented
var ErrNoCredential = fmt.Errorf("%w: no credential presented", ErrMalformedCredential)

// CredentialSource is where credential material is read from
type CredentialSource interface {
	Header(name string) string
	Cookie(name string) (string, bool)
}

type requestSource struct {
	r *http.Request
}

// RequestSource adapts an HTTP request to a CredentialSource
func RequestSource(r *http.Request) CredentialSource {
	return requestSource{r: r}
}

func (s requestSource) Header(name string) string {
	return s.r.Header.Get(name)
}

func (s requestSource) Cookie(name string) (string, bool) {
	c, err := s.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Options gate what an endpoint accepts
type Options struct {
	// RequireSessionToken rejects API tokens and anonymous callers
	RequireSessionToken bool
	// RequireSecure accepts only the secure session variant. Implies RequireSessionToken.
	RequireSecure bool
	// AllowAbsent turns a missing or unresolvable credential into Absent.
	// Gate failures stay Rejected, and it has no effect when a session
	// gate is required.
	AllowAbsent bool
}

func (o Options) requireSession() bool {
	return o.RequireSessionToken || o.RequireSecure
}

// OutcomeStatus is the terminal state of one Resolve call
type OutcomeStatus int

const (
	// OutcomeRejected means a presented credential failed verification or
	// the requested gates
	OutcomeRejected OutcomeStatus = iota
	// OutcomeAbsent means no usable credential and Options.AllowAbsent
	OutcomeAbsent
	// OutcomeResolved means Outcome.Identity is set
	OutcomeResolved
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeResolved:
		return "resolved"
	case OutcomeAbsent:
		return "absent"
	default:
		return "rejected"
	}
}

// Outcome is the result of Resolve. Identity is set only when Resolved;
// Reason only when Rejected.
type Outcome struct {
	Status   OutcomeStatus
	Identity *Identity
	Reason   error
}

// Resolved reports whether the request carries a verified identity
func (o Outcome) Resolved() bool { return o.Status == OutcomeResolved }

// Absent reports whether the request may proceed anonymously
func (o Outcome) Absent() bool { return o.Status == OutcomeAbsent }

// Rejected reports whether the request must be refused; see Reason
func (o Outcome) Rejected() bool { return o.Status == OutcomeRejected }

// Authenticator resolves request credentials to identities. It keeps no
// state between calls; every credential is re-verified against the store.
type Authenticator struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthenticator creates an authenticator over store
func NewAuthenticator(store Store, logger *observability.Logger, metrics *observability.Metrics) *Authenticator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Authenticator{store: store, logger: logger, metrics: metrics}
}

type candidate struct {
	raw     string
	carrier string
}

// Resolve extracts, verifies and gates the credential carried by src.
//
// The Authorization header, when present, is the only credential
// considered. Otherwise the session cookie is tried before the secure
// session cookie and the first one that verifies and passes the gates
// wins. A store failure is returned as an error, never as Rejected.
func (a *Authenticator) Resolve(ctx context.Context, src CredentialSource, opts Options) (Outcome, error) {
	candidates := extract(src)

	var (
		reason     error = ErrNoCredential
		gateFailed bool
	)

	for _, c := range candidates {
		if err := ValidateCredentialFormat(c.raw); err != nil {
			reason = moreSpecific(reason, ErrMalformedCredential)
			continue
		}

		identity, err := a.store.VerifyToken(ctx, c.raw)
		if err != nil {
			if errors.Is(err, ErrUnknownCredential) {
				reason = moreSpecific(reason, ErrUnknownCredential)
				continue
			}
			a.metrics.AuthOutcome("error", "store_unavailable")
			a.logger.WithError(err).WithField("carrier", c.carrier).Error("credential lookup failed")
			if !errors.Is(err, ErrStoreUnavailable) {
				err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			return Outcome{}, err
		}

		if !passesGates(identity, opts) {
			gateFailed = true
			reason = ErrInsufficientGate
			continue
		}

		return a.finish(Outcome{Status: OutcomeResolved, Identity: &identity}, c.carrier), nil
	}

	switch {
	case gateFailed:
		return a.finish(Outcome{Status: OutcomeRejected, Reason: ErrInsufficientGate}, ""), nil
	case opts.AllowAbsent && !opts.requireSession():
		return a.finish(Outcome{Status: OutcomeAbsent}, ""), nil
	default:
		return a.finish(Outcome{Status: OutcomeRejected, Reason: reason}, ""), nil
	}
}

func (a *Authenticator) finish(o Outcome, carrier string) Outcome {
	reason := ""
	if o.Reason != nil {
		reason = reasonLabel(o.Reason)
	}
	a.metrics.AuthOutcome(o.Status.String(), reason)

	log := a.logger.WithField("outcome", o.Status.String())
	if o.Identity != nil {
		log = log.WithField("kind", o.Identity.Kind().String()).
			WithField("user_id", o.Identity.Owner().ID).
			WithField("carrier", carrier)
	}
	if reason != "" {
		log = log.WithField("reason", reason)
	}
	log.Debug("credential resolved")
	return o
}

func extract(src CredentialSource) []candidate {
	if header := strings.TrimSpace(src.Header(HeaderAuthorization)); header != "" {
		return []candidate{{raw: stripBearer(header), carrier: "header"}}
	}

	var out []candidate
	if v, ok := src.Cookie(CookieSession); ok {
		out = append(out, candidate{raw: v, carrier: CookieSession})
	}
	if v, ok := src.Cookie(CookieSecureSession); ok {
		out = append(out, candidate{raw: v, carrier: CookieSecureSession})
	}
	return out
}

func stripBearer(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return header
}

func passesGates(identity Identity, opts Options) bool {
	if opts.requireSession() && !identity.IsSessionToken() {
		return false
	}
	if opts.RequireSecure && !identity.IsSecureSessionToken() {
		return false
	}
	return true
}

// moreSpecific keeps the most informative of two rejection reasons:
// unknown beats malformed beats nothing presented
func moreSpecific(current, next error) error {
	rank := func(err error) int {
		switch {
		case errors.Is(err, ErrInsufficientGate):
			return 3
		case errors.Is(err, ErrUnknownCredential):
			return 2
		case errors.Is(err, ErrNoCredential):
			return 0
		case errors.Is(err, ErrMalformedCredential):
			return 1
		default:
			return 0
		}
	}
	if rank(next) > rank(current) {
		return next
	}
	return current
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientGate):
		return "insufficient_gate"
	case errors.Is(err, ErrUnknownCredential):
		return "unknown_credential"
	case errors.Is(err, ErrNoCredential):
		return "no_credential"
	case errors.Is(err, ErrMalformedCredential):
		return "malformed_credential"
	default:
		return "other"
	}
}
