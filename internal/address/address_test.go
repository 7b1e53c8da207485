package address

import (
	"crypto/sha256"
	"testing"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solido-stake/internal/domain"
)

var stSolMint = sgo.MustPublicKeyFromBase58("7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj")

func newWallet(t *testing.T) sgo.PublicKey {
	t.Helper()
	key, err := sgo.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func TestParse(t *testing.T) {
	key, err := Parse("7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj")
	require.NoError(t, err)
	assert.Equal(t, stSolMint, key)

	for _, in := range []string{"", "not-base58!", "3yZe7d"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, domain.ErrInvalidKey, in)
	}
}

func TestFindProgramAddress_OffCurve(t *testing.T) {
	program := sgo.MustPublicKeyFromBase58("CrX7kMhLC3cSsXJdT7JDgqrRVWGnUpX3gfEfxxU2NVLi")
	seeds := [][]byte{stSolMint[:], []byte("reserve_account")}

	addr, bump, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	assert.False(t, IsOnCurve(addr[:]))

	// Recompute with the returned bump.
	data := append(append(append([]byte{}, seeds[0]...), seeds[1]...), bump)
	data = append(data, program[:]...)
	data = append(data, []byte("ProgramDerivedAddress")...)
	hash := sha256.Sum256(data)
	assert.Equal(t, sgo.PublicKeyFromBytes(hash[:]), addr)
}

func TestFindProgramAddress_SeedTooLong(t *testing.T) {
	_, _, err := FindProgramAddress([][]byte{make([]byte, 33)}, sgo.SystemProgramID)
	assert.Error(t, err)
}

func TestDeriveAssociated_Deterministic(t *testing.T) {
	owner := newWallet(t)

	a, err := DeriveAssociated(owner, stSolMint)
	require.NoError(t, err)
	b, err := DeriveAssociated(owner, stSolMint)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := DeriveAssociated(owner, sgo.SolMint)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	s, err := DeriveAssociatedString(owner.String(), stSolMint.String())
	require.NoError(t, err)
	assert.Equal(t, a.String(), s)
}

func TestDeriveAssociated_MatchesTokenProgram(t *testing.T) {
	seen := make(map[sgo.PublicKey]struct{}, 200)
	for i := 0; i < 200; i++ {
		owner := newWallet(t)
		mint := newWallet(t)

		got, err := DeriveAssociated(owner, mint)
		require.NoError(t, err)

		want, _, err := sgo.FindAssociatedTokenAddress(owner, mint)
		require.NoError(t, err)
		require.Equal(t, want, got, "owner %s mint %s", owner, mint)

		_, dup := seen[got]
		require.False(t, dup, "collision for owner %s mint %s", owner, mint)
		seen[got] = struct{}{}
	}
}

func TestDeriveAssociated_InvalidOwner(t *testing.T) {
	_, err := DeriveAssociated(sgo.PublicKey{}, stSolMint)
	assert.ErrorIs(t, err, domain.ErrInvalidKey)

	// A derived address is off curve and cannot own a wallet token account.
	pda, err := DeriveAssociated(newWallet(t), stSolMint)
	require.NoError(t, err)
	_, err = DeriveAssociated(pda, stSolMint)
	assert.ErrorIs(t, err, domain.ErrInvalidKey)

	_, err = DeriveAssociatedString("garbage", stSolMint.String())
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}
