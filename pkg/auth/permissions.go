package auth

import "strings"

// Mask is the integer permission bitmask carried by a token
type Mask int

// Permission bits. The order is part of the wire format.
const (
	PermCreatePaste Mask = 1 << iota
	PermEditPaste
	PermDeletePaste
	PermViewPrivate
)

const (
	// ValidMask has every defined bit set
	ValidMask = PermCreatePaste | PermEditPaste | PermDeletePaste | PermViewPrivate
	// FullAccess is the mask carried by session tokens
	FullAccess Mask = 255
)

// Valid reports whether the mask only uses defined bits. Used when a
// mask is issued; decoding tolerates anything.
func (m Mask) Valid() bool {
	return m >= 0 && m&^ValidMask == 0
}

// Has reports whether every bit of p is set in m
func (m Mask) Has(p Mask) bool {
	return m&p == p
}

// Permissions is the decoded capability set of a token
type Permissions struct {
	CreatePaste bool `json:"create_paste"`
	EditPaste   bool `json:"edit_paste"`
	DeletePaste bool `json:"delete_paste"`
	ViewPrivate bool `json:"view_private"`
}

// DecodePermissions decodes the four known bits of m. Unknown bits are ignored.
func DecodePermissions(m Mask) Permissions {
	return Permissions{
		CreatePaste: m.Has(PermCreatePaste),
		EditPaste:   m.Has(PermEditPaste),
		DeletePaste: m.Has(PermDeletePaste),
		ViewPrivate: m.Has(PermViewPrivate),
	}
}

// Mask re-encodes the capability set
func (p Permissions) Mask() Mask {
	var m Mask
	if p.CreatePaste {
		m |= PermCreatePaste
	}
	if p.EditPaste {
		m |= PermEditPaste
	}
	if p.DeletePaste {
		m |= PermDeletePaste
	}
	if p.ViewPrivate {
		m |= PermViewPrivate
	}
	return m
}

// Capability is one renderable entry of a permission set
type Capability struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Icon    string `json:"icon"`
	Granted bool   `json:"granted"`
}

// Render returns one Capability per known bit, in bit order
func (p Permissions) Render() []Capability {
	return []Capability{
		{Key: "create_paste", Label: "Create pastes", Icon: "file-plus", Granted: p.CreatePaste},
		{Key: "edit_paste", Label: "Edit pastes", Icon: "pencil", Granted: p.EditPaste},
		{Key: "delete_paste", Label: "Delete pastes", Icon: "trash", Granted: p.DeletePaste},
		{Key: "view_private", Label: "View private pastes", Icon: "eye", Granted: p.ViewPrivate},
	}
}

// String renders the granted capabilities, e.g. "create,edit"
func (p Permissions) String() string {
	var parts []string
	for _, c := range p.Render() {
		if c.Granted {
			parts = append(parts, strings.TrimSuffix(c.Key, "_paste"))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
