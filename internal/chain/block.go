// Package chain holds the block model shared by the search algorithms, the
// Client capability they consume, and the per-client block cache.
package chain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Block is the part of a block header the searches need.
type Block struct {
	Number    uint64
	Timestamp uint64 // unix seconds
}

// Tag is a symbolic block name understood by Ethereum nodes.
type Tag string

const (
	TagLatest    Tag = "latest"
	TagEarliest  Tag = "earliest"
	TagSafe      Tag = "safe"
	TagFinalized Tag = "finalized"
	TagPending   Tag = "pending"
)

// BlockRef points at a block either by number or by tag.
// The zero value refers to the latest block.
type BlockRef struct {
	tag    Tag
	number uint64
}

var (
	Latest   = BlockRef{tag: TagLatest}
	Earliest = BlockRef{tag: TagEarliest}
)

// Number returns a reference to a concrete block number.
func Number(n uint64) BlockRef {
	return BlockRef{tag: numberTag, number: n}
}

// numberTag marks a numeric reference so that the zero value stays "latest".
const numberTag Tag = "#"

// IsNumber reports whether the reference is a concrete block number.
func (r BlockRef) IsNumber() bool { return r.tag == numberTag }

// BlockNumber returns the referenced number; ok is false for tags.
func (r BlockRef) BlockNumber() (n uint64, ok bool) {
	if !r.IsNumber() {
		return 0, false
	}
	return r.number, true
}

// Tag returns the symbolic tag, or "" for numeric references.
func (r BlockRef) Tag() Tag {
	switch r.tag {
	case numberTag:
		return ""
	case "":
		return TagLatest
	default:
		return r.tag
	}
}

// String renders the reference as a JSON-RPC block parameter.
func (r BlockRef) String() string {
	if r.IsNumber() {
		return hexutil.EncodeUint64(r.number)
	}
	return string(r.Tag())
}

// ParseBlockRef converts user input (decimal, 0x-hex, or a tag) to a BlockRef.
// Empty input means latest.
func ParseBlockRef(arg string) (BlockRef, error) {
	arg = strings.TrimSpace(strings.ToLower(arg))

	switch Tag(arg) {
	case "":
		return Latest, nil
	case TagLatest, TagEarliest, TagSafe, TagFinalized, TagPending:
		return BlockRef{tag: Tag(arg)}, nil
	}

	if strings.HasPrefix(arg, "0x") {
		n, err := hexutil.DecodeUint64(arg)
		if err != nil {
			return BlockRef{}, fmt.Errorf("invalid block number %q: %w", arg, err)
		}
		return Number(n), nil
	}

	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return BlockRef{}, fmt.Errorf("invalid block reference %q: expected number, hex or one of latest|earliest|safe|finalized|pending", arg)
	}
	return Number(n), nil
}
