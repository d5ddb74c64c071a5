// Package allowlist decides whether a candidate asset may be admitted to a
// pool's sell-side inventory. A pool carries a fixed array of six slots that
// are evaluated as an unordered OR: the asset is admitted as soon as any
// populated slot matches. Two checks are strict rather than permissive — a
// metadata-URI mismatch and a foreign group-member pointer each abort the
// evaluation with their own error so callers can distinguish a misconfigured
// request from an asset that simply is not on the list.
package allowlist

import "errors"

// MaxSlots is the fixed allowlist length carried by every pool.
const MaxSlots = 6

// Kind tags an allowlist slot.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindMint
	KindCollection
	KindFirstVerifiedCreator
	KindMetadataURI
	KindExtensionGroup
	KindAny
)

var (
	ErrInvalidAllowlists            = errors.New("invalid allowlists")
	ErrUnexpectedMetadataURI        = errors.New("unexpected metadata uri")
	ErrInvalidTokenMemberExtensions = errors.New("invalid token member extensions")
)

// Slot pairs a kind with its comparison value. The value is unused for the
// Empty, Any and MetadataURI kinds.
type Slot struct {
	Kind  Kind
	Value [32]byte
}

// List is a pool's full allowlist. Order is insertion order; evaluation does
// not depend on it.
type List [MaxSlots]Slot

// Valid reports whether the kind is one of the supported variants.
func (k Kind) Valid() bool {
	return k <= KindAny
}

// Empty reports whether no slot is populated.
func (l List) Empty() bool {
	for _, slot := range l {
		if slot.Kind != KindEmpty {
			return false
		}
	}
	return true
}

// Check validates an allowlist on pool creation or update: every kind must be
// known and at least one slot must be populated.
func Check(l List) error {
	for _, slot := range l {
		if !slot.Kind.Valid() {
			return ErrInvalidAllowlists
		}
	}
	if l.Empty() {
		return ErrInvalidAllowlists
	}
	return nil
}

// Admit evaluates the candidate asset against every slot. aux is the
// caller-supplied auxiliary string consumed by MetadataURI slots. A nil
// metadata record never matches.
func Admit(l List, meta *Metadata, aux string) error {
	if meta == nil {
		return ErrInvalidAllowlists
	}
	for _, slot := range l {
		switch slot.Kind {
		case KindEmpty:
			continue
		case KindAny:
			return nil
		case KindMint:
			if slot.Value == meta.Mint {
				return nil
			}
		case KindCollection:
			if meta.CollectionVerified && slot.Value == meta.Collection {
				return nil
			}
		case KindFirstVerifiedCreator:
			if len(meta.Creators) > 0 && meta.Creators[0].Verified && slot.Value == meta.Creators[0].Address {
				return nil
			}
		case KindMetadataURI:
			// The slot only signals that the aux string must equal the
			// asset's metadata URI; the slot value is not consulted.
			if meta.URI != aux {
				return ErrUnexpectedMetadataURI
			}
			return nil
		case KindExtensionGroup:
			if meta.Group == nil {
				continue
			}
			// The membership pointer must be the asset's own mint, never an
			// externally delegated member account.
			if meta.Group.Member != meta.Mint {
				return ErrInvalidTokenMemberExtensions
			}
			if slot.Value == meta.Group.Group {
				return nil
			}
		default:
			return ErrInvalidAllowlists
		}
	}
	return ErrInvalidAllowlists
}
