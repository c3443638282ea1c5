// Package pastes implements paste create, read, edit, delete, search and
// the latest public pastes listing. Every operation goes through the
// access policy in package access; private pastes a caller may not read
// look exactly like pastes that do not exist.
package pastes
