package airdrop

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
)

// Allocation is one entry of the distribution list.
type Allocation struct {
	Beneficiary [20]byte
	Amount      *big.Int
}

// Tree is a sorted-pair Merkle tree over allocation leaves.
type Tree struct {
	root   [32]byte
	levels [][][32]byte
	index  map[[20]byte]int
	leaves map[[20]byte]Allocation
}

// BuildTree hashes the allocations into a tree. Leaves are sorted before
// hashing and an unpaired node is promoted unchanged to the next level, which
// keeps proofs verifiable with sorted-pair hashing alone.
func BuildTree(allocations []Allocation) (*Tree, error) {
	if len(allocations) == 0 {
		return nil, fmt.Errorf("airdrop: no allocations")
	}
	type entry struct {
		leaf  [32]byte
		alloc Allocation
	}
	entries := make([]entry, 0, len(allocations))
	seen := make(map[[20]byte]struct{}, len(allocations))
	for _, alloc := range allocations {
		if _, dup := seen[alloc.Beneficiary]; dup {
			return nil, fmt.Errorf("airdrop: duplicate beneficiary %x", alloc.Beneficiary)
		}
		seen[alloc.Beneficiary] = struct{}{}
		leaf, err := Leaf(alloc.Beneficiary, alloc.Amount)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{leaf: leaf, alloc: Allocation{Beneficiary: alloc.Beneficiary, Amount: cloneAmount(alloc.Amount)}})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].leaf[:], entries[j].leaf[:]) < 0
	})

	tree := &Tree{
		index:  make(map[[20]byte]int, len(entries)),
		leaves: make(map[[20]byte]Allocation, len(entries)),
	}
	level := make([][32]byte, len(entries))
	for i, e := range entries {
		level[i] = e.leaf
		tree.index[e.alloc.Beneficiary] = i
		tree.leaves[e.alloc.Beneficiary] = e.alloc
	}
	tree.levels = append(tree.levels, level)
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		tree.levels = append(tree.levels, next)
		level = next
	}
	tree.root = level[0]
	return tree, nil
}

func (t *Tree) Root() [32]byte { return t.root }

// Len returns the number of allocations in the tree.
func (t *Tree) Len() int { return len(t.leaves) }

// Allocation returns the entry recorded for beneficiary.
func (t *Tree) Allocation(beneficiary [20]byte) (Allocation, bool) {
	alloc, ok := t.leaves[beneficiary]
	if !ok {
		return Allocation{}, false
	}
	return Allocation{Beneficiary: alloc.Beneficiary, Amount: cloneAmount(alloc.Amount)}, true
}

// Proof returns the sibling path for beneficiary.
func (t *Tree) Proof(beneficiary [20]byte) ([][32]byte, bool) {
	pos, ok := t.index[beneficiary]
	if !ok {
		return nil, false
	}
	proof := make([][32]byte, 0, len(t.levels))
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := pos ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		pos /= 2
	}
	return proof, true
}
