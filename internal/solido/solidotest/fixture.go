// Package solidotest seeds an in-memory ledger with a Solido instance.
package solidotest

import (
	"crypto/sha256"
	"testing"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"solido-stake/internal/solana/stub"
	"solido-stake/internal/solido"
)

// Key returns a deterministic public key derived from label.
func Key(label string) sgo.PublicKey {
	sum := sha256.Sum256([]byte(label))
	return sgo.PublicKeyFromBytes(sum[:])
}

// Fixture describes the protocol state written by Seed.
type Fixture struct {
	Addresses      solido.ProgramAddresses
	Lido           solido.LidoState
	Validators     []solido.Validator
	ReserveBalance uint64
	StSolSupply    uint64
}

// New returns a fixture with an exchange rate of 1.1 SOL per stSOL and
// three validators, the second one carrying the most effective stake.
func New() *Fixture {
	addrs := solido.MainnetAddresses
	return &Fixture{
		Addresses: addrs,
		Lido: solido.LidoState{
			AccountType: solido.AccountTypeLido,
			LidoVersion: 2,
			Manager:     Key("manager"),
			StSolMint:   addrs.StSolMint,
			ExchangeRate: solido.ExchangeRateState{
				ComputedInEpoch: 512,
				StSolSupply:     1_000_000_000_000_000,
				SolBalance:      1_100_000_000_000_000,
			},
			ValidatorList:  Key("validator-list"),
			MaintainerList: Key("maintainer-list"),
		},
		Validators: []solido.Validator{
			{VoteAccount: Key("vote-a"), StakeSeeds: solido.SeedRange{Begin: 3, End: 5}, StakeAccountsBalance: 300_000_000_000_000, EffectiveStakeBalance: 300_000_000_000_000, Active: true},
			{VoteAccount: Key("vote-b"), StakeSeeds: solido.SeedRange{Begin: 7, End: 9}, StakeAccountsBalance: 500_000_000_000_000, EffectiveStakeBalance: 500_000_000_000_000, Active: true},
			{VoteAccount: Key("vote-c"), StakeSeeds: solido.SeedRange{Begin: 0, End: 1}, StakeAccountsBalance: 299_000_000_000_000, UnstakeAccountsBalance: 1_000_000_000, EffectiveStakeBalance: 900_000_000_000_000, Active: false},
		},
		ReserveBalance: 10_000_890_880,
		StSolSupply:    1_000_000_000_000_000,
	}
}

// Seed writes the instance, validator list, stSOL mint and reserve into c.
func (f *Fixture) Seed(t testing.TB, c *stub.RPCClient) {
	t.Helper()

	lidoData, err := f.Lido.Encode()
	require.NoError(t, err)
	c.SetAccount(f.Addresses.InstanceID.String(), f.Addresses.ProgramID.String(), 1, lidoData)

	list := solido.ValidatorList{
		Header:     solido.ListHeader{AccountType: solido.AccountTypeValidator, LidoVersion: 2, MaxEntries: 100},
		Validators: f.Validators,
	}
	listData, err := list.Encode()
	require.NoError(t, err)
	c.SetAccount(f.Lido.ValidatorList.String(), f.Addresses.ProgramID.String(), 1, listData)

	mint := solido.MintLayout{
		MintAuthorityOption: [4]byte{1},
		Supply:              f.StSolSupply,
		Decimals:            9,
		IsInitialized:       1,
	}
	mintData, err := mint.Encode()
	require.NoError(t, err)
	c.SetAccount(f.Addresses.StSolMint.String(), sgo.TokenProgramID.String(), 1, mintData)

	auth, err := f.Addresses.DeriveAuthorities()
	require.NoError(t, err)
	c.SetBalance(auth.Reserve.String(), f.ReserveBalance)
}
