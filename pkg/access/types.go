package access

import "fmt"

// Visibility is a paste's access tier. Values are part of the wire and
// storage format.
type Visibility int

const (
	Public   Visibility = 1
	Unlisted Visibility = 2
	Private  Visibility = 3
)

// Valid reports whether v is one of the three defined tiers
func (v Visibility) Valid() bool {
	return v == Public || v == Unlisted || v == Private
}

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Unlisted:
		return "unlisted"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

// Action is what the caller wants to do with a paste
type Action string

const (
	ActionRead               Action = "read"
	ActionEdit               Action = "edit"
	ActionDelete             Action = "delete"
	ActionViewPrivateListing Action = "view_private_listing"
)

// Decision is the outcome of an access check
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Reason explains a decision for logs and metrics. It is never shown to
// the caller, who only ever sees a generic denial.
type Reason string

const (
	ReasonPublic            Reason = "public"
	ReasonUnlisted          Reason = "unlisted_by_id"
	ReasonOwner             Reason = "owner_with_permission"
	ReasonAnonymous         Reason = "anonymous"
	ReasonNotOwner          Reason = "not_owner"
	ReasonMissingPermission Reason = "missing_permission"
	ReasonNoRule            Reason = "no_matching_rule"
)

// Resource is the slice of a paste the policy looks at. Creator is nil
// once the owning account has been deleted.
type Resource struct {
	Creator    *int64
	Visibility Visibility
}

// Result is a decision plus the rule that produced it
type Result struct {
	Decision Decision
	Reason   Reason
}

// Allowed reports whether the decision is Allow
func (r Result) Allowed() bool {
	return r.Decision == Allow
}
