package audit

import (
	"fmt"
	"strings"
	"testing"
)

func testLeaves(n int) []string {
	leaves := make([]string, n)
	for i := range leaves {
		leaves[i] = fmt.Sprintf("%064x", i+1)
	}
	return leaves
}

func TestEmptyTreeRoot(t *testing.T) {
	tree := NewTree(nil)
	if tree.Root() != ZeroRoot {
		t.Errorf("expected zero root, got %s", tree.Root())
	}
}

func TestSingleLeafTree(t *testing.T) {
	leaf := fmt.Sprintf("%064x", 42)
	tree := NewTree([]string{leaf})

	if tree.Root() != "0x"+leaf {
		t.Errorf("single-leaf root should be the leaf: %s", tree.Root())
	}
	proof := tree.Proof(0)
	if len(proof) != 0 {
		t.Errorf("single leaf needs no siblings, got %v", proof)
	}
	if !VerifyProof(leaf, proof, tree.Root()) {
		t.Error("single-leaf proof failed to verify")
	}
}

func TestProofRoundTripAllLeaves(t *testing.T) {
	for _, n := range []int{2, 3, 5, 7, 8, 16} {
		leaves := testLeaves(n)
		tree := NewTree(leaves)

		for i, leaf := range leaves {
			proof := tree.Proof(i)
			if !VerifyProof(leaf, proof, tree.Root()) {
				t.Errorf("n=%d leaf %d: proof did not verify", n, i)
			}
		}
	}
}

func TestTamperedLeafFailsVerification(t *testing.T) {
	leaves := testLeaves(5)
	tree := NewTree(leaves)

	proof := tree.Proof(2)
	forged := fmt.Sprintf("%064x", 9999)
	if VerifyProof(forged, proof, tree.Root()) {
		t.Error("forged leaf verified against honest proof")
	}
	if VerifyProof(leaves[2], proof, ZeroRoot) {
		t.Error("proof verified against the wrong root")
	}
}

func TestProofAgainstWrongLeafIndex(t *testing.T) {
	leaves := testLeaves(4)
	tree := NewTree(leaves)

	// A proof for one position must not validate a different leaf.
	if VerifyProof(leaves[1], tree.Proof(0), tree.Root()) {
		t.Error("proof for index 0 verified leaf 1")
	}
}

func TestSortedPairHashingIsOrderIndependent(t *testing.T) {
	a := fmt.Sprintf("%064x", 1)
	b := fmt.Sprintf("%064x", 2)

	left := NewTree([]string{a, b})
	right := NewTree([]string{b, a})
	if left.Root() != right.Root() {
		t.Errorf("pair order changed the root: %s vs %s", left.Root(), right.Root())
	}
}

func TestLeafNormalization(t *testing.T) {
	// Uppercase, 0x-prefixed, and short leaves all normalize to the same
	// 32-byte form.
	short := "abcd"
	tree := NewTree([]string{short})

	padded := short + strings.Repeat("0", 60)
	if tree.LeafIndex("0x"+strings.ToUpper(short)+strings.Repeat("0", 60)) != 0 {
		t.Error("prefixed uppercase leaf not found")
	}
	if tree.Root() != "0x"+padded {
		t.Errorf("expected padded root, got %s", tree.Root())
	}
}

func TestLeafIndexUnknown(t *testing.T) {
	tree := NewTree(testLeaves(3))
	if idx := tree.LeafIndex(fmt.Sprintf("%064x", 999)); idx != -1 {
		t.Errorf("unknown leaf reported at index %d", idx)
	}
	if proof := tree.Proof(-1); proof != nil {
		t.Errorf("out-of-range proof: %v", proof)
	}
	if proof := tree.Proof(3); proof != nil {
		t.Errorf("out-of-range proof: %v", proof)
	}
}

func TestOddNodePromotion(t *testing.T) {
	// With three leaves the last one is promoted through the first level:
	// its proof has one element fewer than the paired leaves'.
	tree := NewTree(testLeaves(3))

	if len(tree.Proof(0)) != 2 {
		t.Errorf("paired leaf proof length: %d", len(tree.Proof(0)))
	}
	if len(tree.Proof(2)) != 1 {
		t.Errorf("promoted leaf proof length: %d", len(tree.Proof(2)))
	}
	if !VerifyProof(testLeaves(3)[2], tree.Proof(2), tree.Root()) {
		t.Error("promoted leaf proof did not verify")
	}
}
