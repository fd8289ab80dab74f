package airdrop

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DomainName    = "ClaimDrop"
	DomainVersion = "1"
	claimTypeName = "Claim"
)

var claimTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	claimTypeName: {
		{Name: "beneficiary", Type: "address"},
		{Name: "totalAllocation", Type: "uint256"},
		{Name: "percentageToClaim", Type: "uint256"},
		{Name: "percentageToStake", Type: "uint256"},
		{Name: "lockupPeriod", Type: "uint256"},
		{Name: "optionId", Type: "uint256"},
		{Name: "multiplier", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

func claimDomain(chainID *big.Int, verifyingContract [20]byte) apitypes.TypedDataDomain {
	if chainID == nil {
		chainID = big.NewInt(0)
	}
	return apitypes.TypedDataDomain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
		VerifyingContract: common.Address(verifyingContract).Hex(),
	}
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// ClaimTypedData assembles the structured message a beneficiary signs to
// authorize a claim against the instance at verifyingContract.
func ClaimTypedData(chainID *big.Int, verifyingContract, beneficiary [20]byte, totalAllocation *big.Int, opts ClaimOptions, nonce [32]byte) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       claimTypes,
		PrimaryType: claimTypeName,
		Domain:      claimDomain(chainID, verifyingContract),
		Message: apitypes.TypedDataMessage{
			"beneficiary":       common.Address(beneficiary).Hex(),
			"totalAllocation":   cloneAmount(totalAllocation).String(),
			"percentageToClaim": uintString(opts.PercentageToClaim),
			"percentageToStake": uintString(opts.PercentageToStake),
			"lockupPeriod":      uintString(opts.LockupPeriod),
			"optionId":          uintString(opts.OptionID),
			"multiplier":        uintString(opts.Multiplier),
			"nonce":             hexutil.Encode(nonce[:]),
		},
	}
}

// ClaimDigest returns the EIP-712 digest of the claim authorization.
func ClaimDigest(chainID *big.Int, verifyingContract, beneficiary [20]byte, totalAllocation *big.Int, opts ClaimOptions, nonce [32]byte) ([32]byte, error) {
	var digest [32]byte
	hash, _, err := apitypes.TypedDataAndHash(ClaimTypedData(chainID, verifyingContract, beneficiary, totalAllocation, opts, nonce))
	if err != nil {
		return digest, fmt.Errorf("airdrop: hash claim: %w", err)
	}
	copy(digest[:], hash)
	return digest, nil
}

// DomainSeparator returns the hash of the signing domain.
func DomainSeparator(chainID *big.Int, verifyingContract [20]byte) ([32]byte, error) {
	var out [32]byte
	td := apitypes.TypedData{Types: claimTypes, Domain: claimDomain(chainID, verifyingContract)}
	hash, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return out, fmt.Errorf("airdrop: hash domain: %w", err)
	}
	copy(out[:], hash)
	return out, nil
}

// RecoverSigner returns the address that produced signature over digest.
// Signatures are 65 bytes [R || S || V] with V in {0, 1, 27, 28}; high-S
// values are rejected.
func RecoverSigner(digest [32]byte, signature []byte) ([20]byte, error) {
	var signer [20]byte
	if len(signature) != ethcrypto.SignatureLength {
		return signer, fmt.Errorf("%w: signature must be %d bytes", ErrInvalidClaimSignature, ethcrypto.SignatureLength)
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return signer, fmt.Errorf("%w: invalid recovery id", ErrInvalidClaimSignature)
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !ethcrypto.ValidateSignatureValues(sig[64], r, s, true) {
		return signer, fmt.Errorf("%w: malleable or out of range signature", ErrInvalidClaimSignature)
	}
	pub, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return signer, fmt.Errorf("%w: %v", ErrInvalidClaimSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyClaimSignature checks that beneficiary signed digest.
func VerifyClaimSignature(digest [32]byte, signature []byte, beneficiary [20]byte) error {
	signer, err := RecoverSigner(digest, signature)
	if err != nil {
		return err
	}
	if signer != beneficiary {
		return ErrInvalidClaimSignature
	}
	return nil
}
