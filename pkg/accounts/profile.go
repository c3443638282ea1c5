package accounts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// GravatarURL derives the gravatar image for an email address
func GravatarURL(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + ".png?d=retro"
}

// AvatarURL resolves what a user's avatar points at; empty for none
func AvatarURL(u auth.User) string {
	switch u.Avatar.Kind {
	case auth.AvatarGravatar:
		return GravatarURL(u.Email)
	case auth.AvatarCustom:
		return u.Avatar.URL
	default:
		return ""
	}
}

// ValidateProfile checks a profile update without writing it and returns
// it with the email trimmed. An empty email clears the address.
func ValidateProfile(update storage.ProfileUpdate) (storage.ProfileUpdate, error) {
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if email != "" {
			if err := validateEmail(email); err != nil {
				return storage.ProfileUpdate{}, err
			}
		}
		update.Email = &email
	}
	if update.Avatar != nil {
		if err := validateAvatar(*update.Avatar); err != nil {
			return storage.ProfileUpdate{}, err
		}
	}
	return update, nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", auth.ErrInvalidInput)
	}
	return nil
}

func validateAvatar(a auth.Avatar) error {
	switch a.Kind {
	case auth.AvatarNone, auth.AvatarGravatar:
		return nil
	case auth.AvatarCustom:
		u, err := url.Parse(a.URL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("%w: custom avatar needs an http(s) URL", auth.ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown avatar kind %q", auth.ErrInvalidInput, a.Kind)
	}
}
