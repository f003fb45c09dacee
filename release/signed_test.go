package release

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
)

func TestSignedRecover(t *testing.T) {
	pubKey, privKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	rel := testRelease(t, "1.4.2")
	signed, err := NewSigned(privKey, rel)
	require.NoError(t, err)

	recovered, signer, err := signed.Recover()
	require.NoError(t, err)
	require.True(t, pubKey.Equal(signer))
	require.Equal(t, rel.Version, recovered.Version)
}

func TestSignedRecoverRejectsTamperedObject(t *testing.T) {
	_, privKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	rel := testRelease(t, "1.4.2")
	signed, err := NewSigned(privKey, rel)
	require.NoError(t, err)

	signed.Object.Version = "9.9.9"
	_, _, err = signed.Recover()
	require.Error(t, err)
}

func TestSignedRecoverRejectsSubstitutedKey(t *testing.T) {
	_, privKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	otherPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(privKey, testRelease(t, "1.4.2"))
	require.NoError(t, err)

	// Swapping in another identity must invalidate the signature even
	// though the object is untouched.
	signed.PublicKey = otherPub
	_, _, err = signed.Recover()
	require.Error(t, err)
}

func TestSignedRecoverRejectsTamperedSignature(t *testing.T) {
	_, privKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(privKey, testRelease(t, "1.4.2"))
	require.NoError(t, err)

	signed.Signature[0] ^= 0xFF
	_, _, err = signed.Recover()
	require.Error(t, err)
}

func TestSignedJSONRoundTrip(t *testing.T) {
	_, privKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(privKey, testRelease(t, "1.4.2"))
	require.NoError(t, err)

	data, err := SerializeMessage(signed)
	require.NoError(t, err)

	decoded, err := UnmarshalMessage[Signed[Release]](data)
	require.NoError(t, err)

	recovered, _, err := decoded.Recover()
	require.NoError(t, err)
	require.Equal(t, "1.4.2", recovered.Version)
}
