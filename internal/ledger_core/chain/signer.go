package chain

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Signer produces and checks detached signatures over canonical record bytes
type Signer interface {
	Sign(data []byte) ([]byte, error)
	Verify(data, signature []byte) bool
}

// Ed25519Signer signs with a key derived from a 32 byte seed
type Ed25519Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// NewEd25519Signer builds a signer from a hex encoded 32 byte seed
func NewEd25519Signer(hexSeed string) (*Ed25519Signer, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid signing key seed: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	private := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Signer{
		private: private,
		public:  private.Public().(ed25519.PublicKey),
	}, nil
}

func (s *Ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.private, data), nil
}

func (s *Ed25519Signer) Verify(data, signature []byte) bool {
	return ed25519.Verify(s.public, data, signature)
}

// PublicKeyHex exposes the verification key for external auditors
func (s *Ed25519Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.public)
}
