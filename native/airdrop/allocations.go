package airdrop

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"claimdrop/crypto"
)

// allocationFile mirrors one YAML allocation entry.
type allocationFile struct {
	Beneficiary string `yaml:"beneficiary"`
	Amount      string `yaml:"amount"`
}

type allocationDocument struct {
	Allocations []allocationFile `yaml:"allocations"`
}

// LoadAllocations reads the distribution list from a YAML file of the form
//
//	allocations:
//	  - beneficiary: 0x...
//	    amount: "1000"
func LoadAllocations(path string) ([]Allocation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open allocations: %w", err)
	}
	defer file.Close()
	return DecodeAllocations(file)
}

// DecodeAllocations parses the YAML allocation document from r.
func DecodeAllocations(r io.Reader) ([]Allocation, error) {
	var doc allocationDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode allocations: %w", err)
	}
	out := make([]Allocation, 0, len(doc.Allocations))
	for i, entry := range doc.Allocations {
		addr, err := crypto.ParseAddress(entry.Beneficiary)
		if err != nil {
			return nil, fmt.Errorf("allocation %d beneficiary: %w", i, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(entry.Amount), 10)
		if !ok || amount.Sign() <= 0 {
			return nil, fmt.Errorf("allocation %d amount %q must be a positive integer", i, entry.Amount)
		}
		out = append(out, Allocation{Beneficiary: addr, Amount: amount})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decode allocations: no entries")
	}
	return out, nil
}
