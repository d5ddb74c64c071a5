package rpc

import (
	"encoding/hex"
	"fmt"
	"strings"

	"nftamm/native/allowlist"
	"nftamm/native/curve"
	"nftamm/native/pool"
)

func addrHex(addr [32]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func parseAddr(s string) ([32]byte, error) {
	var addr [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q", s)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

var curveKindNames = map[curve.Kind]string{
	curve.Linear:      "linear",
	curve.Exponential: "exponential",
}

func parseCurveKind(s string) (curve.Kind, error) {
	for kind, name := range curveKindNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown curve type %q", s)
}

var slotKindNames = map[allowlist.Kind]string{
	allowlist.KindEmpty:                "empty",
	allowlist.KindMint:                 "mint",
	allowlist.KindCollection:           "collection",
	allowlist.KindFirstVerifiedCreator: "first_verified_creator",
	allowlist.KindMetadataURI:          "metadata_uri",
	allowlist.KindExtensionGroup:       "extension_group",
	allowlist.KindAny:                  "any",
}

type slotView struct {
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
}

func parseAllowlists(slots []slotView) (allowlist.List, error) {
	var list allowlist.List
	if len(slots) > allowlist.MaxSlots {
		return list, fmt.Errorf("at most %d allowlist slots", allowlist.MaxSlots)
	}
	for i, view := range slots {
		var kind allowlist.Kind
		found := false
		for k, name := range slotKindNames {
			if name == strings.ToLower(strings.TrimSpace(view.Kind)) {
				kind, found = k, true
				break
			}
		}
		if !found {
			return list, fmt.Errorf("unknown allowlist kind %q", view.Kind)
		}
		slot := allowlist.Slot{Kind: kind}
		if view.Value != "" {
			value, err := parseAddr(view.Value)
			if err != nil {
				return list, err
			}
			slot.Value = value
		}
		list[i] = slot
	}
	return list, nil
}

func allowlistViews(list allowlist.List) []slotView {
	views := make([]slotView, 0, allowlist.MaxSlots)
	for _, slot := range list {
		if slot.Kind == allowlist.KindEmpty {
			continue
		}
		view := slotView{Kind: slotKindNames[slot.Kind]}
		if slot.Value != ([32]byte{}) {
			view.Value = addrHex(slot.Value)
		}
		views = append(views, view)
	}
	return views
}

type poolView struct {
	ID                      string     `json:"id"`
	EscrowAddress           string     `json:"escrowAddress"`
	UUID                    string     `json:"uuid"`
	Owner                   string     `json:"owner"`
	Cosigner                string     `json:"cosigner"`
	Referral                string     `json:"referral"`
	Expiry                  int64      `json:"expiry"`
	CurveType               string     `json:"curveType"`
	CurveDelta              uint64     `json:"curveDelta"`
	SpotPrice               uint64     `json:"spotPrice"`
	LPFeeBp                 uint32     `json:"lpFeeBp"`
	TakerFeeBp              uint32     `json:"takerFeeBp"`
	MakerFeeBp              uint32     `json:"makerFeeBp"`
	BuysideCreatorRoyaltyBp uint32     `json:"buysideCreatorRoyaltyBp"`
	ReinvestFulfillBuy      bool       `json:"reinvestFulfillBuy"`
	ReinvestFulfillSell     bool       `json:"reinvestFulfillSell"`
	Allowlists              []slotView `json:"allowlists"`
	SellsideAssetAmount     uint64     `json:"sellsideAssetAmount"`
	BuysidePaymentAmount    uint64     `json:"buysidePaymentAmount"`
	LPFeeEarned             uint64     `json:"lpFeeEarned"`
}

func newPoolView(p *pool.Pool) *poolView {
	if p == nil {
		return nil
	}
	return &poolView{
		ID:                      addrHex(p.ID()),
		EscrowAddress:           addrHex(p.EscrowAddress()),
		UUID:                    p.UUID.String(),
		Owner:                   addrHex(p.Owner),
		Cosigner:                addrHex(p.Cosigner),
		Referral:                addrHex(p.Referral),
		Expiry:                  p.Expiry,
		CurveType:               curveKindNames[p.CurveKind],
		CurveDelta:              p.CurveDelta,
		SpotPrice:               p.SpotPrice,
		LPFeeBp:                 p.LPFeeBp,
		TakerFeeBp:              p.TakerFeeBp,
		MakerFeeBp:              p.MakerFeeBp,
		BuysideCreatorRoyaltyBp: p.BuysideCreatorRoyaltyBp,
		ReinvestFulfillBuy:      p.ReinvestFulfillBuy,
		ReinvestFulfillSell:     p.ReinvestFulfillSell,
		Allowlists:              allowlistViews(p.Allowlists),
		SellsideAssetAmount:     p.SellsideAssetAmount,
		BuysidePaymentAmount:    p.BuysidePaymentAmount,
		LPFeeEarned:             p.LPFeeEarned,
	}
}

type sellStateView struct {
	Pool        string `json:"pool"`
	PoolOwner   string `json:"poolOwner"`
	AssetMint   string `json:"assetMint"`
	AssetAmount uint64 `json:"assetAmount"`
}

func newSellStateView(s *pool.SellState) *sellStateView {
	if s == nil {
		return nil
	}
	return &sellStateView{
		Pool:        addrHex(s.Pool),
		PoolOwner:   addrHex(s.PoolOwner),
		AssetMint:   addrHex(s.AssetMint),
		AssetAmount: s.AssetAmount,
	}
}

type fulfillView struct {
	TotalPrice     uint64    `json:"totalPrice"`
	LPFee          uint64    `json:"lpFee"`
	RoyaltyPaid    uint64    `json:"royaltyPaid"`
	SellerReceives uint64    `json:"sellerReceives,omitempty"`
	BuyerOutlay    uint64    `json:"buyerOutlay,omitempty"`
	OwnerProceeds  uint64    `json:"ownerProceeds,omitempty"`
	PoolClosed     bool      `json:"poolClosed"`
	Pool           *poolView `json:"pool,omitempty"`
}

func newFulfillView(res *pool.FulfillResult) *fulfillView {
	return &fulfillView{
		TotalPrice:     res.TotalPrice,
		LPFee:          res.LPFee,
		RoyaltyPaid:    res.RoyaltyPaid,
		SellerReceives: res.SellerReceives,
		BuyerOutlay:    res.BuyerOutlay,
		OwnerProceeds:  res.OwnerProceeds,
		PoolClosed:     res.PoolClosed,
		Pool:           newPoolView(res.Pool),
	}
}

type creatorView struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

type assetRequest struct {
	Mint               string        `json:"mint"`
	Creators           []creatorView `json:"creators,omitempty"`
	Collection         string        `json:"collection,omitempty"`
	CollectionVerified bool          `json:"collectionVerified,omitempty"`
	URI                string        `json:"uri,omitempty"`
	SellerFeeBp        uint32        `json:"sellerFeeBp"`
	GroupMember        string        `json:"groupMember,omitempty"`
	Group              string        `json:"group,omitempty"`
}

func (req *assetRequest) toMetadata() (*allowlist.Metadata, error) {
	mint, err := parseAddr(req.Mint)
	if err != nil {
		return nil, err
	}
	meta := &allowlist.Metadata{
		Mint:               mint,
		CollectionVerified: req.CollectionVerified,
		URI:                req.URI,
		SellerFeeBp:        req.SellerFeeBp,
	}
	if req.Collection != "" {
		if meta.Collection, err = parseAddr(req.Collection); err != nil {
			return nil, err
		}
	}
	for _, c := range req.Creators {
		address, err := parseAddr(c.Address)
		if err != nil {
			return nil, err
		}
		meta.Creators = append(meta.Creators, allowlist.Creator{Address: address, Verified: c.Verified, Share: c.Share})
	}
	if req.Group != "" {
		group, err := parseAddr(req.Group)
		if err != nil {
			return nil, err
		}
		member := mint
		if req.GroupMember != "" {
			if member, err = parseAddr(req.GroupMember); err != nil {
				return nil, err
			}
		}
		meta.Group = &allowlist.GroupMembership{Member: member, Group: group}
	}
	return meta, nil
}
