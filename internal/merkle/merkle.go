// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides a generic Merkle tree used both to commit the
// transactions inside a block payload and, by internal/ad, to commit the
// authenticated-dictionary box set that backs the chain state.
package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint.
type Tree[T Hashable[T]] struct {
	Root         *Node[T]
	Leafs        []*Node[T]
	MerkleRoot   []byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using
// Keccak256 when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hashStrategy: sha3.NewLegacyKeccak256,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		t.Root = nil
		t.Leafs = nil
		t.MerkleRoot = t.emptyRoot()
		return nil
	}

	var leafs []*Node[T]
	for _, value := range values {
		h, err := value.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Hash:  h,
			Value: value,
			leaf:  true,
			Tree:  t,
		})
	}

	if len(leafs)%2 == 1 {
		duplicate := &Node[T]{
			Hash:  leafs[len(leafs)-1].Hash,
			Value: leafs[len(leafs)-1].Value,
			leaf:  true,
			dup:   true,
			Tree:  t,
		}
		leafs = append(leafs, duplicate)
	}

	root, err := buildIntermediate(leafs, t)
	if err != nil {
		return err
	}

	t.Root = root
	t.Leafs = leafs
	t.MerkleRoot = root.Hash

	return nil
}

// emptyRoot is the canonical digest of a tree with no leafs.
func (t *Tree[T]) emptyRoot() []byte {
	h := t.hashStrategy()
	return h.Sum(nil)
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// data that it currently holds in the leaves.
func (t *Tree[T]) Rebuild() error {
	var data []T
	for _, node := range t.Leafs {
		data = append(data, node.Value)
	}

	return t.Generate(data)
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a piece of data is in the tree. order[i] == 1 means the
// sibling hash is concatenated on the right, 0 means on the left.
func (t *Tree[T]) Proof(data T) ([][]byte, []int, error) {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		var path [][]byte
		var order []int
		cur, parent := node, node.Parent

		for parent != nil {
			if bytes.Equal(parent.Left.Hash, cur.Hash) {
				path = append(path, parent.Right.Hash)
				order = append(order, 1)
			} else {
				path = append(path, parent.Left.Hash)
				order = append(order, 0)
			}
			cur = parent
			parent = parent.Parent
		}

		return path, order, nil
	}

	return nil, nil, errors.New("merkle: data not found in tree")
}

// Verify validates the hashes at each level of the tree and returns an error
// if the resulting hash at the root of the tree does not match the recorded
// merkle root.
func (t *Tree[T]) Verify() error {
	if t.Root == nil {
		if bytes.Equal(t.MerkleRoot, t.emptyRoot()) {
			return nil
		}
		return errors.New("merkle: root hash invalid")
	}

	calculated, err := t.Root.verify()
	if err != nil {
		return err
	}

	if !bytes.Equal(t.MerkleRoot, calculated) {
		return errors.New("merkle: root hash invalid")
	}

	return nil
}

// VerifyData indicates whether a given piece of data is in the tree and if the
// hashes are valid for that data, walking from the leaf to the root.
func (t *Tree[T]) VerifyData(data T) error {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		cur := node.Parent
		for cur != nil {
			right, err := cur.Right.CalculateHash()
			if err != nil {
				return err
			}

			left, err := cur.Left.CalculateHash()
			if err != nil {
				return err
			}

			h := t.hashStrategy()
			if _, err := h.Write(append(left, right...)); err != nil {
				return err
			}

			if !bytes.Equal(h.Sum(nil), cur.Hash) {
				return errors.New("merkle: data does not verify against the root")
			}

			cur = cur.Parent
		}

		return nil
	}

	return errors.New("merkle: data not found in tree")
}

// Values returns a slice of unique values stored in the tree, dropping the
// synthetic duplicate leaf added to balance an odd-sized tree.
func (t *Tree[T]) Values() []T {
	var values []T
	for _, leaf := range t.Leafs {
		values = append(values, leaf.Value)
	}

	l := len(t.Leafs)
	if l >= 2 && bytes.Equal(t.Leafs[l-1].Hash, t.Leafs[l-2].Hash) {
		return values[:l-1]
	}

	return values
}

// RootHex returns the hex-encoded merkle root.
func (t *Tree[T]) RootHex() string {
	return fmt.Sprintf("0x%x", t.MerkleRoot)
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	s := ""
	for _, l := range t.Leafs {
		s += fmt.Sprint(l)
		s += "\n"
	}
	return s
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
	dup    bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	right, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	left, err := n.Left.verify()
	if err != nil {
		return nil, err
	}

	h := n.Tree.hashStrategy()
	if _, err := h.Write(append(left, right...)); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// CalculateHash is a helper function that calculates the hash of the node.
func (n *Node[T]) CalculateHash() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	h := n.Tree.hashStrategy()
	if _, err := h.Write(append(n.Left.Hash, n.Right.Hash...)); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %t %v %v", n.leaf, n.dup, n.Hash, n.Value)
}

// =============================================================================

// buildIntermediate is a helper function that for a given list of leaf nodes,
// constructs the intermediate and root levels of the tree. Returns the
// resulting root node of the tree.
func buildIntermediate[T Hashable[T]](nl []*Node[T], t *Tree[T]) (*Node[T], error) {
	var nodes []*Node[T]

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if i+1 == len(nl) {
			right = i
		}

		h := t.hashStrategy()
		chash := append(append([]byte{}, nl[left].Hash...), nl[right].Hash...)
		if _, err := h.Write(chash); err != nil {
			return nil, err
		}

		n := Node[T]{
			Left:  nl[left],
			Right: nl[right],
			Hash:  h.Sum(nil),
			Tree:  t,
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n

		if len(nl) == 2 {
			return &n, nil
		}
	}

	return buildIntermediate(nodes, t)
}
