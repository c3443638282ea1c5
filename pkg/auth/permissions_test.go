package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePermissions_AllSixteenBitMasks(t *testing.T) {
	for m := Mask(0); m < 1<<16; m++ {
		p := DecodePermissions(m)

		if p.Mask() != m&ValidMask {
			t.Fatalf("mask %d: re-encode = %d, want %d", m, p.Mask(), m&ValidMask)
		}
		if DecodePermissions(p.Mask()) != p {
			t.Fatalf("mask %d: decode is not stable across re-encode", m)
		}
		if DecodePermissions(m&ValidMask) != p {
			t.Fatalf("mask %d: bits above 3 changed the decoded capabilities", m)
		}
	}
}

func TestDecodePermissions_SingleBitFlip(t *testing.T) {
	flags := func(p Permissions) [4]bool {
		return [4]bool{p.CreatePaste, p.EditPaste, p.DeletePaste, p.ViewPrivate}
	}

	for m := Mask(0); m <= ValidMask; m++ {
		for bit := 0; bit < 4; bit++ {
			a := flags(DecodePermissions(m))
			b := flags(DecodePermissions(m ^ (1 << bit)))
			for i := 0; i < 4; i++ {
				if i == bit {
					assert.NotEqual(t, a[i], b[i], "mask %d bit %d", m, bit)
				} else {
					assert.Equal(t, a[i], b[i], "mask %d bit %d changed capability %d", m, bit, i)
				}
			}
		}
	}
}

func TestMaskValid(t *testing.T) {
	assert.True(t, Mask(0).Valid())
	assert.True(t, ValidMask.Valid())
	assert.False(t, Mask(16).Valid())
	assert.False(t, Mask(-1).Valid())
	assert.False(t, FullAccess.Valid(), "session mask is never issuable to an API token")
}

func TestPermissionsRender(t *testing.T) {
	p := DecodePermissions(PermCreatePaste | PermDeletePaste)

	caps := p.Render()
	require.Len(t, caps, 4)
	assert.Equal(t, "create_paste", caps[0].Key)
	assert.True(t, caps[0].Granted)
	assert.False(t, caps[1].Granted)
	assert.True(t, caps[2].Granted)
	assert.False(t, caps[3].Granted)

	assert.Equal(t, "create,delete", p.String())
	assert.Equal(t, "none", Permissions{}.String())
	assert.Equal(t, "create,edit,delete,view_private", DecodePermissions(FullAccess).String())
}
