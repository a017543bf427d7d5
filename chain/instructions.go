package chain

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

var (
	stakeProgramID  = solana.MustPublicKeyFromBase58("Stake11111111111111111111111111111111111111")
	stakeConfigID   = solana.MustPublicKeyFromBase58("StakeConfig11111111111111111111111111111111")
	systemProgramID = solana.SystemProgramID
)

// stakeAccountSpace is the byte size of a stake account's state.
const stakeAccountSpace = 200

// Instruction discriminants, little-endian u32 prefixes of the bincode
// instruction data.
const (
	systemAssign   uint32 = 1
	systemTransfer uint32 = 2
	systemAllocate uint32 = 8

	stakeDelegate   uint32 = 2
	stakeSplit      uint32 = 3
	stakeWithdraw   uint32 = 4
	stakeDeactivate uint32 = 5
	stakeMerge      uint32 = 7
)

// encodeData serializes a discriminant followed by optional little-endian
// arguments, matching the on-chain programs' bincode layout.
func encodeData(discriminant uint32, args ...any) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, discriminant)
	for _, a := range args {
		binary.Write(buf, binary.LittleEndian, a)
	}
	return buf.Bytes()
}

// withdrawStake moves lamports out of a stake account to a recipient wallet.
func withdrawStake(stake, recipient, authority solana.PublicKey, lamports uint64) solana.Instruction {
	return solana.NewInstruction(stakeProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(stake, true, false),
		solana.NewAccountMeta(recipient, true, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(solana.SysVarStakeHistoryPubkey, false, false),
		solana.NewAccountMeta(authority, false, true),
	}, encodeData(stakeWithdraw, lamports))
}

// delegateStake points a stake account at a vote account.
func delegateStake(stake, vote, authority solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(stakeProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(stake, true, false),
		solana.NewAccountMeta(vote, false, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(solana.SysVarStakeHistoryPubkey, false, false),
		solana.NewAccountMeta(stakeConfigID, false, false),
		solana.NewAccountMeta(authority, false, true),
	}, encodeData(stakeDelegate))
}

// deactivateStake begins the cooldown of a delegated stake account.
func deactivateStake(stake, authority solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(stakeProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(stake, true, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(authority, false, true),
	}, encodeData(stakeDeactivate))
}

// splitStake carves lamports out of a stake account into a fresh one. The
// destination must already be allocated to the stake program; splitStakeTx
// assembles the full sequence.
func splitStake(stake, destination, authority solana.PublicKey, lamports uint64) solana.Instruction {
	return solana.NewInstruction(stakeProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(stake, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(authority, false, true),
	}, encodeData(stakeSplit, lamports))
}

// splitStakeTx returns the three instructions of a split: allocate the new
// account, assign it to the stake program, then split into it. The new
// account signs the allocate and assign.
func splitStakeTx(stake, destination, authority solana.PublicKey, lamports uint64) []solana.Instruction {
	allocate := solana.NewInstruction(systemProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(destination, true, true),
	}, encodeData(systemAllocate, uint64(stakeAccountSpace)))
	assign := solana.NewInstruction(systemProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(destination, true, true),
	}, encodeData(systemAssign, stakeProgramID))
	return []solana.Instruction{allocate, assign, splitStake(stake, destination, authority, lamports)}
}

// mergeStake folds the source stake account into the destination. The source
// account closes on success.
func mergeStake(destination, source, authority solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(stakeProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(solana.SysVarStakeHistoryPubkey, false, false),
		solana.NewAccountMeta(authority, false, true),
	}, encodeData(stakeMerge))
}

// transferLamports is a plain system transfer between wallets.
func transferLamports(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	return solana.NewInstruction(systemProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(from, true, true),
		solana.NewAccountMeta(to, true, false),
	}, encodeData(systemTransfer, lamports))
}
