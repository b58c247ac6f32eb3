package ports

import "go.trai.ch/assetbuilder/internal/core/domain"

// Signer turns asset groups into tamper-evident URL tokens.
//
//go:generate mockgen -source=signer.go -destination=mocks/mock_signer.go -package=mocks
type Signer interface {
	// Sign encodes group into a URL-safe token.
	Sign(group domain.AssetGroup) (string, error)
	// Verify decodes a token produced by Sign. Tampered or corrupt tokens
	// return domain.ErrInvalidGroupToken.
	Verify(token string) (domain.AssetGroup, error)
}
