package merkle_test

import (
	"bytes"
	"testing"

	"github.com/coreledger/node/internal/merkle"
	"github.com/stretchr/testify/require"
)

// leaf is a minimal Hashable implementation used to exercise the tree
// independent of any chain type.
type leaf struct{ x string }

func (l leaf) Hash() ([]byte, error) { return []byte(l.x), nil }
func (l leaf) Equals(o leaf) bool    { return l.x == o.x }

func TestTree_RootStableAcrossRebuild(t *testing.T) {
	values := []leaf{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}

	tree, err := merkle.NewTree(values)
	require.NoError(t, err)
	root := tree.MerkleRoot

	require.NoError(t, tree.Rebuild())
	require.True(t, bytes.Equal(root, tree.MerkleRoot))
	require.NoError(t, tree.Verify())
}

func TestTree_EmptyRootIsDeterministic(t *testing.T) {
	t1, err := merkle.NewTree[leaf](nil)
	require.NoError(t, err)

	t2, err := merkle.NewTree[leaf](nil)
	require.NoError(t, err)

	require.True(t, bytes.Equal(t1.MerkleRoot, t2.MerkleRoot))
	require.NoError(t, t1.Verify())
}

func TestTree_ProofVerifiesAgainstRoot(t *testing.T) {
	values := []leaf{{"a"}, {"b"}, {"c"}}

	tree, err := merkle.NewTree(values)
	require.NoError(t, err)

	require.NoError(t, tree.VerifyData(values[1]))

	_, _, err = tree.Proof(leaf{"not-present"})
	require.Error(t, err)
}

func TestTree_OddLeafCountDropsSyntheticDuplicate(t *testing.T) {
	values := []leaf{{"a"}, {"b"}, {"c"}}

	tree, err := merkle.NewTree(values)
	require.NoError(t, err)

	require.Equal(t, values, tree.Values())
}
