package signature

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/mr-tron/base58"
)

// ChallengePrefix is prepended to the nonce to form the exact message a
// wallet must sign. Verification performs no normalization.
const ChallengePrefix = "whalegate-verify:"

func ChallengeMessage(nonce string) []byte {
	return []byte(ChallengePrefix + nonce)
}

// Ed25519Verifier checks detached ed25519 signatures. The wallet
// address is the base58-encoded public key; signatures are accepted in
// base58 or standard base64. Any decode failure fails closed.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(message []byte, signatureText, walletAddress string) bool {
	pub, err := base58.Decode(walletAddress)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}

	sig := decodeSignature(signatureText)
	if len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}

func decodeSignature(text string) []byte {
	if sig, err := base58.Decode(text); err == nil && len(sig) == ed25519.SignatureSize {
		return sig
	}
	if sig, err := base64.StdEncoding.DecodeString(text); err == nil {
		return sig
	}
	return nil
}

// Preview truncates key or signature material for logs.
func Preview(text string) string {
	if len(text) <= 12 {
		return text
	}
	return text[:12] + "..."
}
