package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeypair(t *testing.T) (wallet string, priv ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub), priv
}

func TestVerifyValidSignature(t *testing.T) {
	wallet, priv := newKeypair(t)
	msg := ChallengeMessage("some-nonce-value")
	sig := ed25519.Sign(priv, msg)

	v := Ed25519Verifier{}
	assert.True(t, v.Verify(msg, base58.Encode(sig), wallet))
}

func TestVerifyAcceptsBase64Signature(t *testing.T) {
	wallet, priv := newKeypair(t)
	msg := ChallengeMessage("some-nonce-value")
	sig := ed25519.Sign(priv, msg)

	v := Ed25519Verifier{}
	assert.True(t, v.Verify(msg, base64.StdEncoding.EncodeToString(sig), wallet))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	wallet, priv := newKeypair(t)
	msg := ChallengeMessage("some-nonce-value")
	sig := ed25519.Sign(priv, msg)

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0x01

	v := Ed25519Verifier{}
	assert.False(t, v.Verify(tampered, base58.Encode(sig), wallet))
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	wallet, priv := newKeypair(t)
	msg := ChallengeMessage("some-nonce-value")
	sig := ed25519.Sign(priv, msg)

	for i := range sig {
		mutated := append([]byte(nil), sig...)
		mutated[i] ^= 0x01
		v := Ed25519Verifier{}
		assert.False(t, v.Verify(msg, base58.Encode(mutated), wallet), "bit flip at byte %d accepted", i)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, priv := newKeypair(t)
	otherWallet, _ := newKeypair(t)
	msg := ChallengeMessage("some-nonce-value")
	sig := ed25519.Sign(priv, msg)

	v := Ed25519Verifier{}
	assert.False(t, v.Verify(msg, base58.Encode(sig), otherWallet))
}

func TestVerifyFailsClosedOnDecodeErrors(t *testing.T) {
	wallet, priv := newKeypair(t)
	msg := ChallengeMessage("some-nonce-value")
	sig := ed25519.Sign(priv, msg)

	v := Ed25519Verifier{}
	assert.False(t, v.Verify(msg, "not-valid-encoding-!!!", wallet))
	assert.False(t, v.Verify(msg, base58.Encode(sig), "0OIl-invalid-base58"))
	assert.False(t, v.Verify(msg, base58.Encode(sig), base58.Encode([]byte("short"))))
	assert.False(t, v.Verify(msg, "", ""))
}

func TestChallengeMessageIsDeterministic(t *testing.T) {
	assert.Equal(t, []byte("whalegate-verify:abc"), ChallengeMessage("abc"))
	assert.Equal(t, ChallengeMessage("abc"), ChallengeMessage("abc"))
}

func TestPreviewTruncates(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	assert.Equal(t, "abcdefghijkl...", Preview("abcdefghijklmnopqrstuvwxyz"))
}
