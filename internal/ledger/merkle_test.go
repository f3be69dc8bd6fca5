package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMerkleRootEmptyBatchIsGenesis(t *testing.T) {
	assert.Equal(t, genesisHash, ComputeMerkleRoot(nil))
}

func TestComputeMerkleRootSingleLeafIsItself(t *testing.T) {
	assert.Equal(t, "abc", ComputeMerkleRoot([]string{"abc"}))
}

func TestComputeMerkleRootDeterministic(t *testing.T) {
	leaves := []string{"h1", "h2", "h3", "h4", "h5"}
	r1 := ComputeMerkleRoot(leaves)
	r2 := ComputeMerkleRoot(leaves)
	assert.Equal(t, r1, r2)
	assert.Len(t, r1, 64)
}

func TestComputeMerkleRootChangesWithAnyLeaf(t *testing.T) {
	a := ComputeMerkleRoot([]string{"h1", "h2", "h3"})
	b := ComputeMerkleRoot([]string{"h1", "h2", "h4"})
	assert.NotEqual(t, a, b)
}

func TestProveAndVerifyInclusionEvenBatch(t *testing.T) {
	leaves := []string{"h1", "h2", "h3", "h4"}
	tree := BuildMerkleTree(leaves)

	for i, leaf := range leaves {
		proof := tree.Prove(i)
		require.NotNil(t, proof)
		assert.Equal(t, leaf, proof.LeafHash)
		assert.True(t, VerifyProof(proof, tree.Root()))
	}
}

func TestProveAndVerifyInclusionOddBatch(t *testing.T) {
	leaves := []string{"h1", "h2", "h3"}
	tree := BuildMerkleTree(leaves)

	proof := tree.ProveHash("h3")
	require.NotNil(t, proof)
	assert.True(t, VerifyProof(proof, tree.Root()))
}

func TestVerifyProofRejectsWrongRoot(t *testing.T) {
	tree := BuildMerkleTree([]string{"h1", "h2", "h3", "h4"})
	proof := tree.Prove(1)
	assert.False(t, VerifyProof(proof, "not-the-real-root"))
}

func TestProveOutOfRangeReturnsNil(t *testing.T) {
	tree := BuildMerkleTree([]string{"h1", "h2"})
	assert.Nil(t, tree.Prove(5))
	assert.Nil(t, tree.Prove(-1))
}
