package indexqueue

import "github.com/hashicorp-forge/hermes-indexqueue/pkg/work"

// layer orders the conversion of a batch. Every item is converted in exactly
// one layer, and all of the first layer is converted before the second.
type layer int

const (
	layerFirst layer = iota
	layerSecond
)

var layers = [...]layer{layerFirst, layerSecond}

func (l layer) String() string {
	if l == layerFirst {
		return "first"
	}
	return "second"
}

// accepts reports whether work of kind k is converted in layer l. Collection
// work is deferred to the second layer only when ordered is set; otherwise
// the first layer takes everything.
func (l layer) accepts(k work.Kind, ordered bool) bool {
	switch l {
	case layerFirst:
		return !ordered || k != work.Collection
	case layerSecond:
		return ordered && k == work.Collection
	}
	return false
}
