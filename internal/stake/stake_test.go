package stake

import (
	"encoding/binary"
	"testing"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) sgo.PublicKey {
	t.Helper()
	k, err := sgo.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func TestDecode_Delegated(t *testing.T) {
	withdrawer := randomKey(t)
	voter := randomKey(t)

	data := Encode(&State{
		Kind: KindStake,
		Meta: &Meta{RentExemptReserve: 2_282_880, Staker: withdrawer, Withdrawer: withdrawer},
		Delegation: &Delegation{
			Voter:             voter,
			Stake:             5_000_000_000,
			ActivationEpoch:   400,
			DeactivationEpoch: NotDeactivated,
			WarmupCooldown:    0.25,
		},
	})
	require.Len(t, data, AccountSize)
	assert.Equal(t, withdrawer[:], data[WithdrawerOffset:WithdrawerOffset+32])

	st, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, st.Delegated())
	assert.Equal(t, withdrawer, st.Meta.Withdrawer)
	assert.Equal(t, voter, st.Delegation.Voter)
	assert.Equal(t, uint64(5_000_000_000), st.Delegation.Stake)
	assert.Equal(t, uint64(NotDeactivated), st.Delegation.DeactivationEpoch)
	assert.Equal(t, 0.25, st.Delegation.WarmupCooldown)
}

func TestDecode_NotDelegated(t *testing.T) {
	owner := randomKey(t)

	st, err := Decode(Encode(&State{Kind: KindInitialized, Meta: &Meta{Withdrawer: owner}}))
	require.NoError(t, err)
	assert.False(t, st.Delegated())
	assert.Nil(t, st.Delegation)
	assert.Equal(t, owner, st.Meta.Withdrawer)

	st, err = Decode(make([]byte, AccountSize))
	require.NoError(t, err)
	assert.Equal(t, KindUninitialized, st.Kind)
	assert.False(t, st.Delegated())
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte{2, 0})
	assert.Error(t, err)

	truncated := make([]byte, 150)
	binary.LittleEndian.PutUint32(truncated, uint32(KindStake))
	_, err = Decode(truncated)
	assert.Error(t, err)

	unknown := make([]byte, AccountSize)
	binary.LittleEndian.PutUint32(unknown, 9)
	_, err = Decode(unknown)
	assert.Error(t, err)
}

func TestParseActivation(t *testing.T) {
	for _, s := range []string{"activating", "active", "deactivating", "inactive"} {
		a, err := ParseActivation(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(a))
	}

	_, err := ParseActivation("warming")
	assert.Error(t, err)

	assert.True(t, Inactive.Withdrawable())
	assert.False(t, Deactivating.Withdrawable())
}

func TestDeactivateInstruction(t *testing.T) {
	account, authority := randomKey(t), randomKey(t)

	ix := DeactivateInstruction(account, authority)
	assert.Equal(t, sgo.StakeProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, account, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, sgo.SysVarClockPubkey, accounts[1].PublicKey)
	assert.Equal(t, authority, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsSigner)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0, 0, 0}, data)
}

func TestWithdrawInstruction(t *testing.T) {
	account, owner := randomKey(t), randomKey(t)

	ix := WithdrawInstruction(account, owner, owner, 3_000_000_000)

	accounts := ix.Accounts()
	require.Len(t, accounts, 5)
	assert.Equal(t, account, accounts[0].PublicKey)
	assert.Equal(t, owner, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsWritable)
	assert.Equal(t, sgo.SysVarStakeHistoryPubkey, accounts[3].PublicKey)
	assert.True(t, accounts[4].IsSigner)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 12)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data))
	assert.Equal(t, uint64(3_000_000_000), binary.LittleEndian.Uint64(data[4:]))
}
