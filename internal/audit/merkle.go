package audit

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroRoot is the defined root of an empty tree.
const ZeroRoot = "0x" + "0000000000000000000000000000000000000000000000000000000000000000"

// Tree is a Merkle tree over 32-byte leaves with keccak-256 sorted-pair
// hashing. Sibling order is canonical (lexicographic), so pair hashing is
// order-independent. An odd node at any level is promoted unchanged.
type Tree struct {
	leaves []string   // normalized 64-char hex, no 0x prefix
	layers [][]string // bottom-up; layers[0] == leaves
	root   string     // 0x-prefixed
}

// NewTree builds a tree from leaf hashes. Leaves are normalized to a fixed
// 32-byte hex representation before hashing.
func NewTree(leafHashes []string) *Tree {
	t := &Tree{}
	for _, leaf := range leafHashes {
		t.leaves = append(t.leaves, normalizeLeaf(leaf))
	}
	t.build()
	return t
}

// Root returns the 0x-prefixed root hash.
func (t *Tree) Root() string { return t.root }

// LeafIndex returns the position of a leaf hash, or -1 if absent.
func (t *Tree) LeafIndex(leafHash string) int {
	normalized := normalizeLeaf(leafHash)
	for i, leaf := range t.leaves {
		if leaf == normalized {
			return i
		}
	}
	return -1
}

func (t *Tree) build() {
	if len(t.leaves) == 0 {
		t.root = ZeroRoot
		return
	}

	current := append([]string(nil), t.leaves...)
	t.layers = [][]string{append([]string(nil), current...)}

	for len(current) > 1 {
		next := make([]string, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, hashPair(current[i], current[i+1]))
			} else {
				// Odd node: promoted unchanged.
				next = append(next, current[i])
			}
		}
		current = next
		t.layers = append(t.layers, append([]string(nil), current...))
	}

	t.root = "0x" + current[0]
}

// Proof collects the sibling at each level for the leaf at index. A
// promoted node has no sibling at that level and contributes no element.
func (t *Tree) Proof(index int) []string {
	if index < 0 || index >= len(t.leaves) {
		return nil
	}

	var proof []string
	for _, layer := range t.layers[:len(t.layers)-1] {
		if index%2 == 0 {
			if index+1 < len(layer) {
				proof = append(proof, "0x"+layer[index+1])
			}
		} else {
			proof = append(proof, "0x"+layer[index-1])
		}
		index /= 2
	}
	return proof
}

// VerifyProof checks an inclusion proof against a claimed root. It is a
// pure function of (leaf, proof, root) — no tree state required — so proofs
// from batches no longer held in memory remain verifiable.
func VerifyProof(leafHash string, proof []string, root string) bool {
	current := normalizeLeaf(leafHash)
	for _, sibling := range proof {
		current = hashPair(current, normalizeLeaf(sibling))
	}
	return "0x"+current == strings.ToLower(root)
}

// normalizeLeaf converts a hex hash to the canonical 32-byte form: 0x prefix
// stripped, lowercased, right-padded with zeros and truncated to 64 chars.
func normalizeLeaf(h string) string {
	h = strings.ToLower(strings.TrimPrefix(h, "0x"))
	if len(h) < 64 {
		h += strings.Repeat("0", 64-len(h))
	}
	return h[:64]
}

// hashPair hashes two nodes in canonical (sorted) order.
func hashPair(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)

	left, _ := hex.DecodeString(pair[0])
	right, _ := hex.DecodeString(pair[1])
	return hex.EncodeToString(crypto.Keccak256(left, right))
}
