package access

import (
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/observability"
)

// Decide applies the paste access policy. id is nil for anonymous callers.
// Rules are evaluated in order and the first match wins:
//
//  1. read on a public paste: allow
//  2. read or view_private_listing on a private paste: owner with view_private
//  3. read on an unlisted paste: allow
//  4. edit: owner with edit
//  5. delete: owner with delete
//  6. anything else: deny
func Decide(id *auth.Identity, res Resource, action Action) Result {
	switch {
	case action == ActionRead && res.Visibility == Public:
		return Result{Decision: Allow, Reason: ReasonPublic}

	case (action == ActionRead || action == ActionViewPrivateListing) && res.Visibility == Private:
		return ownerWith(id, res, func(p auth.Permissions) bool { return p.ViewPrivate })

	case action == ActionRead && res.Visibility == Unlisted:
		return Result{Decision: Allow, Reason: ReasonUnlisted}

	case action == ActionEdit:
		return ownerWith(id, res, func(p auth.Permissions) bool { return p.EditPaste })

	case action == ActionDelete:
		return ownerWith(id, res, func(p auth.Permissions) bool { return p.DeletePaste })

	default:
		return Result{Decision: Deny, Reason: ReasonNoRule}
	}
}

// Allowed is Decide reduced to a bool
func Allowed(id *auth.Identity, res Resource, action Action) bool {
	return Decide(id, res, action).Allowed()
}

// IsOwner reports whether id owns res. Always false for anonymized pastes
// and for identities without a persisted owner.
func IsOwner(id *auth.Identity, res Resource) bool {
	if id == nil || res.Creator == nil {
		return false
	}
	owner := id.Owner().ID
	return owner > 0 && *res.Creator == owner
}

func ownerWith(id *auth.Identity, res Resource, has func(auth.Permissions) bool) Result {
	switch {
	case id == nil || !id.Valid():
		return Result{Decision: Deny, Reason: ReasonAnonymous}
	case !IsOwner(id, res):
		return Result{Decision: Deny, Reason: ReasonNotOwner}
	case !has(id.Permissions()):
		return Result{Decision: Deny, Reason: ReasonMissingPermission}
	default:
		return Result{Decision: Allow, Reason: ReasonOwner}
	}
}

// Checker is Decide with decisions counted and logged
type Checker struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewChecker creates a Checker. Both arguments may be nil.
func NewChecker(logger *observability.Logger, metrics *observability.Metrics) *Checker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Checker{logger: logger, metrics: metrics}
}

// Check decides and records the decision
func (c *Checker) Check(id *auth.Identity, res Resource, action Action) Result {
	result := Decide(id, res, action)
	c.metrics.AccessDecision(string(action), result.Decision.String())

	if !result.Allowed() {
		log := c.logger.WithField("action", string(action)).
			WithField("visibility", res.Visibility.String()).
			WithField("reason", string(result.Reason))
		if id != nil {
			log = log.WithField("user_id", id.Owner().ID)
		}
		log.Debug("access denied")
	}
	return result
}
