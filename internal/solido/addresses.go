// Package solido reads Lido for Solana protocol state and builds its
// deposit and withdraw instructions.
package solido

import (
	"encoding/binary"
	"fmt"

	sgo "github.com/gagliardetto/solana-go"

	"solido-stake/internal/address"
)

// ProgramAddresses identifies one Solido deployment.
type ProgramAddresses struct {
	ProgramID  sgo.PublicKey
	InstanceID sgo.PublicKey
	StSolMint  sgo.PublicKey
}

// MainnetAddresses is the production Lido for Solana deployment.
var MainnetAddresses = ProgramAddresses{
	ProgramID:  sgo.MustPublicKeyFromBase58("CrX7kMhLC3cSsXJdT7JDgqrRVWGnUpX3gfEfxxU2NVLi"),
	InstanceID: sgo.MustPublicKeyFromBase58("49Yi1TKkNyYjPAFdR9LBvoHcUjuPX4Df5T5yv39w2XTn"),
	StSolMint:  sgo.MustPublicKeyFromBase58("7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj"),
}

// ParseProgramAddresses builds addresses from base58 strings.
func ParseProgramAddresses(programID, instanceID, stSolMint string) (ProgramAddresses, error) {
	var (
		addrs ProgramAddresses
		err   error
	)
	if addrs.ProgramID, err = address.Parse(programID); err != nil {
		return ProgramAddresses{}, fmt.Errorf("program id: %w", err)
	}
	if addrs.InstanceID, err = address.Parse(instanceID); err != nil {
		return ProgramAddresses{}, fmt.Errorf("instance id: %w", err)
	}
	if addrs.StSolMint, err = address.Parse(stSolMint); err != nil {
		return ProgramAddresses{}, fmt.Errorf("stSOL mint: %w", err)
	}
	return addrs, nil
}

// Authority seeds.
const (
	seedReserveAccount        = "reserve_account"
	seedMintAuthority         = "mint_authority"
	seedStakeAuthority        = "stake_authority"
	seedValidatorStakeAccount = "validator_stake_account"
)

// Authorities are the program-derived accounts of an instance.
type Authorities struct {
	Reserve        sgo.PublicKey
	MintAuthority  sgo.PublicKey
	StakeAuthority sgo.PublicKey
}

// DeriveAuthorities derives the reserve, mint authority and stake authority.
func (a ProgramAddresses) DeriveAuthorities() (Authorities, error) {
	var out Authorities
	for _, item := range []struct {
		seed string
		dst  *sgo.PublicKey
	}{
		{seedReserveAccount, &out.Reserve},
		{seedMintAuthority, &out.MintAuthority},
		{seedStakeAuthority, &out.StakeAuthority},
	} {
		addr, _, err := address.FindProgramAddress(
			[][]byte{a.InstanceID[:], []byte(item.seed)}, a.ProgramID)
		if err != nil {
			return Authorities{}, fmt.Errorf("derive %s: %w", item.seed, err)
		}
		*item.dst = addr
	}
	return out, nil
}

// ValidatorStakeAccount derives the stake account with the given seed held
// by the instance for a validator.
func (a ProgramAddresses) ValidatorStakeAccount(vote sgo.PublicKey, seed uint64) (sgo.PublicKey, error) {
	seedBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(seedBytes, seed)

	addr, _, err := address.FindProgramAddress([][]byte{
		a.InstanceID[:],
		vote[:],
		[]byte(seedValidatorStakeAccount),
		seedBytes,
	}, a.ProgramID)
	if err != nil {
		return sgo.PublicKey{}, fmt.Errorf("derive validator stake account: %w", err)
	}
	return addr, nil
}
