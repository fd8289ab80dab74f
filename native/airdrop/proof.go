package airdrop

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var leafArguments = func() abi.Arguments {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	uintTy, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: addressTy}, {Type: uintTy}}
}()

// Leaf hashes an allocation entry. The ABI encoded pair is hashed twice so a
// leaf can never be confused with an interior node.
func Leaf(beneficiary [20]byte, allocation *big.Int) ([32]byte, error) {
	if allocation == nil || allocation.Sign() < 0 {
		return [32]byte{}, fmt.Errorf("%w: negative allocation", ErrInvalidAmount)
	}
	encoded, err := leafArguments.Pack(common.Address(beneficiary), allocation)
	if err != nil {
		return [32]byte{}, fmt.Errorf("airdrop: encode leaf: %w", err)
	}
	inner := ethcrypto.Keccak256(encoded)
	var leaf [32]byte
	copy(leaf[:], ethcrypto.Keccak256(inner))
	return leaf, nil
}

// hashPair combines two nodes in sorted order.
func hashPair(a, b [32]byte) [32]byte {
	var out [32]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(out[:], ethcrypto.Keccak256(a[:], b[:]))
	} else {
		copy(out[:], ethcrypto.Keccak256(b[:], a[:]))
	}
	return out
}

// ProcessProof folds the proof into the root it implies for leaf.
func ProcessProof(leaf [32]byte, proof [][32]byte) [32]byte {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed
}

// VerifyProof reports whether proof links leaf to root.
func VerifyProof(root, leaf [32]byte, proof [][32]byte) bool {
	return ProcessProof(leaf, proof) == root
}

// VerifyAllocation checks that (beneficiary, allocation) is a member of the
// tree committed to by root.
func VerifyAllocation(root [32]byte, beneficiary [20]byte, allocation *big.Int, proof [][32]byte) error {
	leaf, err := Leaf(beneficiary, allocation)
	if err != nil {
		return err
	}
	if !VerifyProof(root, leaf, proof) {
		return ErrInvalidProof
	}
	return nil
}
