package models

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/normicyte/normicyte/internal/errors"
)

const webauthnIDSize = 64

// User is an anonymous passkey-authenticated player.
type User struct {
	ID          []byte `db:"id"`
	DisplayName string `db:"display_name"`
	Credentials []webauthn.Credential
}

// NewUser initialises a new user with a random ID and an anonymous display name.
func NewUser() (*User, error) {
	id := make([]byte, webauthnIDSize)
	if _, err := rand.Read(id); err != nil {
		return nil, errors.Wrap(err, "generate user id")
	}

	return &User{
		DisplayName: fmt.Sprintf("Agent registered at %s", time.Now().Format(time.RFC3339)),
		ID:          id,
		Credentials: []webauthn.Credential{},
	}, nil
}

// WebAuthnID provides the user handle of the user account. A user handle is an opaque byte sequence with a maximum
// size of 64 bytes, and is not meant to be displayed to the user.
//
// Authentication and authorization decisions MUST be made on the basis of this id member, not the display name.
//
// Specification: §5.4.3. User Account Parameters for Credential Generation
// (https://w3c.github.io/webauthn/#dom-publickeycredentialuserentity-id)
func (u User) WebAuthnID() []byte {
	return u.ID
}

// WebAuthnName provides the name attribute of the user account during registration, intended only for display.
func (u User) WebAuthnName() string {
	return u.DisplayName
}

// WebAuthnDisplayName provides the display name attribute of the user account during registration.
func (u User) WebAuthnDisplayName() string {
	return u.DisplayName
}

// WebAuthnCredentials provides the list of [webauthn.Credential] owned by the user.
func (u User) WebAuthnCredentials() []webauthn.Credential {
	return u.Credentials
}

// AddWebAuthnCredential adds a credential to the user.
func (u *User) AddWebAuthnCredential(credential webauthn.Credential) {
	u.Credentials = append(u.Credentials, credential)
}

// WebAuthnIcon is a deprecated option.
// Deprecated: this has been removed from the specification recommendation. Suggest a blank string.
func (u User) WebAuthnIcon() string {
	return ""
}
