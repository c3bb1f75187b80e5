// Package namehash implements the content-addressing scheme that turns
// human-readable names into the fixed-size identifiers used as listing keys
// and registry node references. All functions are pure.
package namehash

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LabelHash hashes a single label ("foo", not "foo.eth").
func LabelHash(label string) common.Hash {
	return crypto.Keccak256Hash([]byte(label))
}

// NameHash computes the node identifier of a dotted name. The empty name is
// the zero node.
func NameHash(name string) common.Hash {
	if name == "" {
		return common.Hash{}
	}
	labels := strings.Split(name, ".")
	labelHash := crypto.Keccak256([]byte(labels[len(labels)-1]))
	remainderHash := NameHash(strings.Join(labels[:len(labels)-1], ".")).Bytes()
	return crypto.Keccak256Hash(append(remainderHash, labelHash...))
}

// Subnode derives the node identifier of a child under a parent node.
func Subnode(parent common.Hash, labelHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(append(parent.Bytes(), labelHash.Bytes()...))
}
