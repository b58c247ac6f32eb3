// Package signer encodes asset groups into signed, URL-safe tokens.
package signer

import (
	"crypto/sha256"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/zerr"
)

// tokenName binds the HMAC to asset group tokens.
const tokenName = "assetgroup"

// Signer implements ports.Signer with gorilla/securecookie.
type Signer struct {
	codec *securecookie.SecureCookie
}

var _ ports.Signer = (*Signer)(nil)

// New creates a Signer keyed by secret. An empty secret is derived from the
// host's hardware address; when none is available the derived key only
// lives as long as the process and a warning is logged.
func New(secret []byte, log ports.Logger) *Signer {
	if len(secret) == 0 {
		secret = HostSecret()
		if uuid.NodeInterface() == "random" && log != nil {
			log.Warn(domain.ErrUnstableSecret.Error(), "hint", "set 'secret' in "+domain.ConfigFileName)
		}
	}

	codec := securecookie.New(secret, nil).
		SetSerializer(securecookie.JSONEncoder{}).
		MaxAge(0).
		MaxLength(0)

	return &Signer{codec: codec}
}

// HostSecret derives a signing key from the host's node ID.
func HostSecret() []byte {
	sum := sha256.Sum256(uuid.NodeID())
	return sum[:]
}

// Sign encodes group into a token.
func (s *Signer) Sign(group domain.AssetGroup) (string, error) {
	token, err := s.codec.Encode(tokenName, group)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrGroupSignFailed, err.Error()), "paths", len(group.Paths))
	}
	return token, nil
}

// Verify decodes and authenticates a token produced by Sign.
func (s *Signer) Verify(token string) (domain.AssetGroup, error) {
	var group domain.AssetGroup
	if err := s.codec.Decode(tokenName, token, &group); err != nil {
		return domain.AssetGroup{}, zerr.With(zerr.Wrap(domain.ErrInvalidGroupToken, "token rejected"), "reason", err.Error())
	}
	if len(group.Paths) == 0 {
		return domain.AssetGroup{}, zerr.With(zerr.Wrap(domain.ErrInvalidGroupToken, "token rejected"), "reason", "empty group")
	}
	return group, nil
}
