package allowlist

// Creator is one entry of an asset's recorded creator list. Share is a
// percentage; the shares of all creators sum to 100.
type Creator struct {
	Address  [32]byte
	Verified bool
	Share    uint8
}

// GroupMembership is the group-extension pointer carried by extension-bearing
// assets: the member account the pointer lives on and the group it resolves
// to.
type GroupMembership struct {
	Member [32]byte
	Group  [32]byte
}

// Metadata is the oracle-supplied view of an asset consumed by the matcher
// and the fee apportioner.
type Metadata struct {
	Mint               [32]byte
	Creators           []Creator
	Collection         [32]byte
	CollectionVerified bool
	URI                string
	// SellerFeeBp is the asset's recorded royalty rate in basis points.
	SellerFeeBp uint32
	// Group is nil for assets without the group extension.
	Group *GroupMembership
}

// Source resolves asset metadata. Implementations are external collaborators;
// the matcher never fetches anything itself.
type Source interface {
	AssetMetadata(mint [32]byte) (*Metadata, error)
}

// Clone returns a deep copy so engines can hand metadata to callers without
// sharing slices.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Creators = append([]Creator(nil), m.Creators...)
	if m.Group != nil {
		group := *m.Group
		clone.Group = &group
	}
	return &clone
}
