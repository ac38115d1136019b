package merkle

import (
	"fmt"
	"math/bits"

	"github.com/starkforge/starkforge/internal/starkforge/hash"
)

// MerkleTreeNodeIndex indexes internal nodes of a MerkleTree, heap-style:
// index 1 is the root, indices 2 and 3 its children, 4 and 5 the children
// of node 2, and so on. Index 0 is never used.
type MerkleTreeNodeIndex = uint64

// MerkleTreeLeafIndex indexes leafs left to right, starting at zero.
type MerkleTreeLeafIndex = uint64

// MerkleTreeHeight counts tree layers below the root.
type MerkleTreeHeight = uint32

const RootIndex MerkleTreeNodeIndex = 1

// sibling flips the low bit of a node index to find its sibling; parent
// halves it to move up one layer. Both conventions fall out of the
// heap-style indexing scheme.
func sibling(nodeIndex MerkleTreeNodeIndex) MerkleTreeNodeIndex { return nodeIndex ^ 1 }
func parent(nodeIndex MerkleTreeNodeIndex) MerkleTreeNodeIndex  { return nodeIndex / 2 }

// MerkleTree is a binary tree of Tip5 digests, holding a power-of-two
// number of leafs (up to 2^62), used to prove membership without
// revealing the whole data set.
type MerkleTree struct {
	nodes []hash.Digest
}

// New builds a MerkleTree over leafs. leafs must be non-empty and its
// length a power of two.
func New(leafs []hash.Digest) (*MerkleTree, error) {
	nodes, err := initializeMerkleTreeNodes(leafs)
	if err != nil {
		return nil, err
	}
	return fillInternalNodes(nodes, len(leafs)), nil
}

// initializeMerkleTreeNodes validates the leaf count and lays leafs out
// in the second half of a 2*numLeafs node array (the first half holds
// internal nodes, with slot 0 unused).
func initializeMerkleTreeNodes(leafs []hash.Digest) ([]hash.Digest, error) {
	numLeafs := len(leafs)
	if numLeafs == 0 {
		return nil, fmt.Errorf("cannot create Merkle tree with zero leafs")
	}
	if !isPowerOfTwo(uint64(numLeafs)) {
		return nil, fmt.Errorf("number of leafs must be a power of two, got %d", numLeafs)
	}

	nodes := make([]hash.Digest, 2*numLeafs)
	copy(nodes[numLeafs:], leafs)
	return nodes, nil
}

// fillInternalNodes hashes pairs of nodes bottom-up until only the root
// remains.
func fillInternalNodes(nodes []hash.Digest, levelWidth int) *MerkleTree {
	for levelWidth > 1 {
		for i := 0; i < levelWidth; i += 2 {
			left, right := nodes[levelWidth+i], nodes[levelWidth+i+1]
			nodes[levelWidth/2+i/2] = hash.HashPair(left, right)
		}
		levelWidth /= 2
	}
	return &MerkleTree{nodes: nodes}
}

func (mt *MerkleTree) Root() hash.Digest {
	if len(mt.nodes) == 0 {
		return hash.ZeroDigest()
	}
	return mt.nodes[RootIndex]
}

// Height is log2(numLeafs).
func (mt *MerkleTree) Height() MerkleTreeHeight {
	if len(mt.nodes) <= 1 {
		return 0
	}
	return uint32(bits.Len(uint(len(mt.nodes)/2)) - 1)
}

func (mt *MerkleTree) NumLeafs() uint64 {
	if len(mt.nodes) <= 1 {
		return 0
	}
	return uint64(len(mt.nodes) / 2)
}

// Size is the total node count (unused slot 0 + internal nodes + leafs).
func (mt *MerkleTree) Size() int {
	if len(mt.nodes) <= 1 {
		return 0
	}
	return len(mt.nodes)
}

func (mt *MerkleTree) GetLeaf(index MerkleTreeLeafIndex) (hash.Digest, error) {
	numLeafs := mt.NumLeafs()
	if index >= numLeafs {
		return hash.ZeroDigest(), fmt.Errorf("leaf index %d out of range [0, %d)", index, numLeafs)
	}
	return mt.nodes[numLeafs+index], nil
}

func (mt *MerkleTree) GetNode(nodeIndex MerkleTreeNodeIndex) (hash.Digest, error) {
	if nodeIndex == 0 || nodeIndex >= uint64(len(mt.nodes)) {
		return hash.ZeroDigest(), fmt.Errorf("node index %d out of range [1, %d)", nodeIndex, len(mt.nodes))
	}
	return mt.nodes[nodeIndex], nil
}

// AuthenticationPath returns the sibling digests needed to recompute the
// root from the leaf at leafIndex, ordered leaf-to-root.
func (mt *MerkleTree) AuthenticationPath(leafIndex MerkleTreeLeafIndex) ([]hash.Digest, error) {
	numLeafs := mt.NumLeafs()
	if leafIndex >= numLeafs {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", leafIndex, numLeafs)
	}

	height := mt.Height()
	path := make([]hash.Digest, height)
	nodeIndex := numLeafs + leafIndex
	for i := uint32(0); i < height; i++ {
		path[i] = mt.nodes[sibling(nodeIndex)]
		nodeIndex = parent(nodeIndex)
	}
	return path, nil
}

// foldAuthenticationPath recomputes a root by repeatedly hashing the
// running digest with each sibling in authPath, ordering left/right by
// whether the current index is even (left child) or odd (right child).
// It's the computation both VerifyInclusionProof and the partial-tree
// fallback path need.
func foldAuthenticationPath(leaf hash.Digest, leafIndex MerkleTreeLeafIndex, authPath []hash.Digest) hash.Digest {
	current := leaf
	index := leafIndex
	for _, siblingDigest := range authPath {
		if index%2 == 0 {
			current = hash.HashPair(current, siblingDigest)
		} else {
			current = hash.HashPair(siblingDigest, current)
		}
		index /= 2
	}
	return current
}

// VerifyInclusionProof checks that leaf sits at leafIndex in the tree
// whose root is root, given its authentication path.
func VerifyInclusionProof(root hash.Digest, leafIndex MerkleTreeLeafIndex, leaf hash.Digest, authPath []hash.Digest) bool {
	return foldAuthenticationPath(leaf, leafIndex, authPath).Equal(root)
}

// MerkleTreeInclusionProof proves membership of several leafs at once
// against a single de-duplicated authentication structure.
type MerkleTreeInclusionProof struct {
	TreeHeight              MerkleTreeHeight
	IndexedLeafs            []LeafIndexDigestPair
	AuthenticationStructure []hash.Digest
}

type LeafIndexDigestPair struct {
	Index  MerkleTreeLeafIndex
	Digest hash.Digest
}

// NewInclusionProof builds a proof for leafIndices, sharing sibling
// digests across indices wherever their authentication paths overlap.
func (mt *MerkleTree) NewInclusionProof(leafIndices []MerkleTreeLeafIndex) (*MerkleTreeInclusionProof, error) {
	numLeafs := mt.NumLeafs()
	for _, idx := range leafIndices {
		if idx >= numLeafs {
			return nil, fmt.Errorf("leaf index %d out of range [0, %d)", idx, numLeafs)
		}
	}

	indexedLeafs := make([]LeafIndexDigestPair, len(leafIndices))
	for i, idx := range leafIndices {
		leaf, _ := mt.GetLeaf(idx)
		indexedLeafs[i] = LeafIndexDigestPair{Index: idx, Digest: leaf}
	}

	return &MerkleTreeInclusionProof{
		TreeHeight:              mt.Height(),
		IndexedLeafs:            indexedLeafs,
		AuthenticationStructure: mt.buildAuthenticationStructure(leafIndices),
	}, nil
}

// buildAuthenticationStructure walks from each requested leaf to the
// root, emitting a sibling digest only the first time that node index is
// needed — later paths that pass through an already-revealed node don't
// duplicate it.
func (mt *MerkleTree) buildAuthenticationStructure(leafIndices []MerkleTreeLeafIndex) []hash.Digest {
	numLeafs := mt.NumLeafs()
	height := mt.Height()

	revealed := make(map[MerkleTreeNodeIndex]bool, len(leafIndices)*int(height))
	for _, idx := range leafIndices {
		revealed[numLeafs+idx] = true
	}

	var authNodes []hash.Digest
	for _, leafIdx := range leafIndices {
		nodeIndex := numLeafs + leafIdx
		for level := uint32(0); level < height; level++ {
			siblingIdx := sibling(nodeIndex)
			if !revealed[siblingIdx] {
				authNodes = append(authNodes, mt.nodes[siblingIdx])
				revealed[siblingIdx] = true
			}
			nodeIndex = parent(nodeIndex)
			revealed[nodeIndex] = true
		}
	}
	return authNodes
}

// Verify recomputes the root from the proof's leafs and authentication
// structure and compares against root.
func (proof *MerkleTreeInclusionProof) Verify(root hash.Digest) bool {
	if len(proof.IndexedLeafs) == 0 {
		return false
	}
	tree := newPartialMerkleTree(proof.TreeHeight, proof.IndexedLeafs, proof.AuthenticationStructure)
	return tree.computeRoot().Equal(root)
}

// partialMerkleTree reconstructs just enough of a tree — the revealed
// leafs and the authentication structure's siblings — to recompute a
// root, without materializing the full node array.
type partialMerkleTree struct {
	treeHeight  MerkleTreeHeight
	leafIndices []MerkleTreeLeafIndex
	nodes       map[MerkleTreeNodeIndex]hash.Digest
}

func newPartialMerkleTree(height MerkleTreeHeight, indexedLeafs []LeafIndexDigestPair, authStructure []hash.Digest) *partialMerkleTree {
	numLeafs := uint64(1) << height
	nodes := make(map[MerkleTreeNodeIndex]hash.Digest, len(indexedLeafs)+len(authStructure))
	leafIndices := make([]MerkleTreeLeafIndex, len(indexedLeafs))

	for i, pair := range indexedLeafs {
		nodes[numLeafs+pair.Index] = pair.Digest
		leafIndices[i] = pair.Index
	}

	authIdx := 0
	for _, leafIdx := range leafIndices {
		nodeIndex := numLeafs + leafIdx
		for level := uint32(0); level < height; level++ {
			siblingIdx := sibling(nodeIndex)
			if _, ok := nodes[siblingIdx]; !ok && authIdx < len(authStructure) {
				nodes[siblingIdx] = authStructure[authIdx]
				authIdx++
			}
			nodeIndex = parent(nodeIndex)
		}
	}

	return &partialMerkleTree{treeHeight: height, leafIndices: leafIndices, nodes: nodes}
}

// computeRoot hashes complete sibling pairs level by level; if that
// leaves the root unresolved (e.g. only one leaf's path was supplied, so
// no sibling pair is ever complete), it falls back to folding that single
// leaf's path directly via foldAuthenticationPath.
func (pt *partialMerkleTree) computeRoot() hash.Digest {
	for level := pt.treeHeight; level > 0; level-- {
		levelStart := uint64(1) << level
		for nodeIdx := levelStart; nodeIdx < 2*levelStart; nodeIdx += 2 {
			left, leftOK := pt.nodes[nodeIdx]
			right, rightOK := pt.nodes[nodeIdx+1]
			if leftOK && rightOK {
				pt.nodes[parent(nodeIdx)] = hash.HashPair(left, right)
			}
		}
	}

	if root, ok := pt.nodes[RootIndex]; ok {
		return root
	}

	numLeafs := uint64(1) << pt.treeHeight
	for _, leafIdx := range pt.leafIndices {
		leaf, ok := pt.nodes[numLeafs+leafIdx]
		if !ok {
			continue
		}

		path := make([]hash.Digest, 0, pt.treeHeight)
		nodeIndex := numLeafs + leafIdx
		complete := true
		for level := uint32(0); level < pt.treeHeight; level++ {
			siblingDigest, ok := pt.nodes[sibling(nodeIndex)]
			if !ok {
				complete = false
				break
			}
			path = append(path, siblingDigest)
			nodeIndex = parent(nodeIndex)
		}
		if complete {
			return foldAuthenticationPath(leaf, leafIdx, path)
		}
	}

	return hash.ZeroDigest()
}

func isPowerOfTwo(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}
