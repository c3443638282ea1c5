// Package access decides whether an identity may read, edit or delete a
// paste.
//
// Decide is pure and total: every input maps to Allow or Deny, never to an
// error, so callers cannot forget a third outcome.
//
//	res := access.Resource{Creator: paste.Creator, Visibility: paste.Visibility}
//	if !access.Allowed(identity, res, access.ActionEdit) {
//		return pastes.ErrNotFound
//	}
//
// Ownership compares user ids. A paste whose creator was deleted (nil
// Creator) can never be edited or deleted again, and is readable only
// while public or unlisted.
package access
