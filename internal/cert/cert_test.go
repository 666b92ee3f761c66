package cert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMintProducesUsableCertificate(t *testing.T) {
	id, err := Mint()
	require.NoError(t, err)
	require.NotEmpty(t, id.DER)
	require.NotEmpty(t, id.Name)
	require.Len(t, id.Certificate.Certificate, 1)
	require.Equal(t, id.DER, id.Certificate.Certificate[0])
}

func TestMintProducesDistinctIdentitiesEachCall(t *testing.T) {
	a, err := Mint()
	require.NoError(t, err)
	b, err := Mint()
	require.NoError(t, err)
	require.NotEqual(t, a.Name, b.Name)
	require.NotEqual(t, a.DER, b.DER)
}

func TestVerifyPeerDERAcceptsExactMatch(t *testing.T) {
	id, err := Mint()
	require.NoError(t, err)
	verify := VerifyPeerDER(id.DER)
	require.NoError(t, verify([][]byte{id.DER}, nil))
}

func TestVerifyPeerDERRejectsMismatch(t *testing.T) {
	id, err := Mint()
	require.NoError(t, err)
	attacker, err := Mint()
	require.NoError(t, err)

	verify := VerifyPeerDER(id.DER)
	require.ErrorIs(t, verify([][]byte{attacker.DER}, nil), ErrPeerMismatch)
}

func TestVerifyPeerDERRejectsEmptyChain(t *testing.T) {
	id, err := Mint()
	require.NoError(t, err)
	verify := VerifyPeerDER(id.DER)
	require.ErrorIs(t, verify(nil, nil), ErrPeerMismatch)
}
