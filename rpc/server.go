// Package rpc exposes the pool engine over HTTP: pool lifecycle and trade
// endpoints, asset metadata registration, health and metrics.
package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nftamm/native/allowlist"
	"nftamm/native/common"
	"nftamm/native/curve"
	"nftamm/native/fees"
	"nftamm/native/pool"
	"nftamm/state"
)

// Server wires the engine and the state manager behind the HTTP API.
type Server struct {
	engine *pool.Engine
	state  *state.Manager
	log    *slog.Logger
	// faucet exposes the dev-only funding endpoint when true.
	faucet bool
}

// Options configures optional server behaviour.
type Options struct {
	FaucetEnabled bool
}

// NewServer constructs the HTTP API around an engine and its state manager.
func NewServer(engine *pool.Engine, manager *state.Manager, log *slog.Logger, opts Options) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, state: manager, log: log, faucet: opts.FaucetEnabled}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", Metrics().Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/pools", instrument("create_pool", s.handleCreatePool))
		v1.Get("/pools/{id}", instrument("get_pool", s.handleGetPool))
		v1.Get("/pools/{id}/sellstate/{mint}", instrument("get_sell_state", s.handleGetSellState))
		v1.Post("/pools/{id}/allowlists", instrument("update_allowlists", s.handleUpdateAllowlists))
		v1.Post("/pools/{id}/deposit-buy", instrument("deposit_buy", s.handleDepositBuy))
		v1.Post("/pools/{id}/withdraw-buy", instrument("withdraw_buy", s.handleWithdrawBuy))
		v1.Post("/pools/{id}/deposit-sell", instrument("deposit_sell", s.handleDepositSell))
		v1.Post("/pools/{id}/withdraw-sell", instrument("withdraw_sell", s.handleWithdrawSell))
		v1.Post("/pools/{id}/fulfill-buy", instrument("fulfill_buy", s.handleFulfillBuy))
		v1.Post("/pools/{id}/fulfill-sell", instrument("fulfill_sell", s.handleFulfillSell))
		v1.Post("/assets", instrument("register_asset", s.handleRegisterAsset))
		if s.faucet {
			v1.Post("/dev/fund", instrument("dev_fund", s.handleFund))
		}
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.log.Debug("request rejected", "path", r.URL.Path, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

var badRequestErrs = []error{
	pool.ErrInvalidCosigner,
	pool.ErrInvalidOwner,
	pool.ErrInvalidReferral,
	pool.ErrInvalidRequestedPrice,
	pool.ErrExpired,
	pool.ErrNotEnoughBalance,
	pool.ErrInvalidAssetAmount,
	pool.ErrInvalidPaymentAmount,
	fees.ErrInvalidLPFee,
	fees.ErrInvalidBP,
	curve.ErrInvalidCurveType,
	curve.ErrInvalidCurveDelta,
	allowlist.ErrInvalidAllowlists,
	allowlist.ErrUnexpectedMetadataURI,
	allowlist.ErrInvalidTokenMemberExtensions,
	common.ErrNumericOverflow,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pool.ErrPoolNotFound),
		errors.Is(err, pool.ErrSellStateNotFound),
		errors.Is(err, state.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrPoolExists):
		return http.StatusConflict
	}
	for _, sentinel := range badRequestErrs {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) poolID(w http.ResponseWriter, r *http.Request) ([32]byte, bool) {
	id, err := parseAddr(chi.URLParam(r, "id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return id, false
	}
	return id, true
}

type createPoolRequest struct {
	UUID                    string     `json:"uuid"`
	Owner                   string     `json:"owner"`
	Cosigner                string     `json:"cosigner"`
	Referral                string     `json:"referral,omitempty"`
	Expiry                  int64      `json:"expiry,omitempty"`
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
	CosignerAnnotation      string     `json:"cosignerAnnotation,omitempty"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := uuid.Parse(req.UUID)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid uuid: " + err.Error()})
		return
	}
	args := pool.CreatePoolArgs{
		UUID:                    id,
		Expiry:                  req.Expiry,
		CurveDelta:              req.CurveDelta,
		SpotPrice:               req.SpotPrice,
		LPFeeBp:                 req.LPFeeBp,
		TakerFeeBp:              req.TakerFeeBp,
		MakerFeeBp:              req.MakerFeeBp,
		BuysideCreatorRoyaltyBp: req.BuysideCreatorRoyaltyBp,
		ReinvestFulfillBuy:      req.ReinvestFulfillBuy,
		ReinvestFulfillSell:     req.ReinvestFulfillSell,
	}
	if args.Owner, err = parseAddr(req.Owner); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if args.Cosigner, err = parseAddr(req.Cosigner); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Referral != "" {
		if args.Referral, err = parseAddr(req.Referral); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	if req.CosignerAnnotation != "" {
		if args.CosignerAnnotation, err = parseAddr(req.CosignerAnnotation); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	if args.CurveKind, err = parseCurveKind(req.CurveType); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if args.Allowlists, err = parseAllowlists(req.Allowlists); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	created, err := s.engine.CreatePool(args)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("pool created", "pool", addrHex(created.ID()), "owner", req.Owner)
	s.writeJSON(w, http.StatusCreated, newPoolView(created))
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	p, err := s.engine.Pool(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPoolView(p))
}

func (s *Server) handleGetSellState(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	mint, err := parseAddr(chi.URLParam(r, "mint"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	record, err := s.engine.SellState(id, mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newSellStateView(record))
}

type updateAllowlistsRequest struct {
	Cosigner   string     `json:"cosigner"`
	Allowlists []slotView `json:"allowlists"`
}

func (s *Server) handleUpdateAllowlists(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req updateAllowlistsRequest
	if !s.decode(w, r, &req) {
		return
	}
	cosigner, err := parseAddr(req.Cosigner)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	lists, err := parseAllowlists(req.Allowlists)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	updated, err := s.engine.UpdateAllowlists(cosigner, id, lists)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPoolView(updated))
}

type paymentRequest struct {
	Owner    string `json:"owner"`
	Cosigner string `json:"cosigner"`
	Amount   uint64 `json:"amount"`
}

func (s *Server) handleDepositBuy(w http.ResponseWriter, r *http.Request) {
	s.handlePayment(w, r, s.engine.DepositBuy)
}

func (s *Server) handleWithdrawBuy(w http.ResponseWriter, r *http.Request) {
	s.handlePayment(w, r, s.engine.WithdrawBuy)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request, op func(owner, cosigner, poolID [32]byte, amount uint64) (*pool.Pool, error)) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	owner, err := parseAddr(req.Owner)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	cosigner, err := parseAddr(req.Cosigner)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	p, err := op(owner, cosigner, id, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPoolView(p))
}

type depositSellRequest struct {
	Owner        string `json:"owner"`
	Cosigner     string `json:"cosigner"`
	AssetMint    string `json:"assetMint"`
	AssetAmount  uint64 `json:"assetAmount"`
	AllowlistAux string `json:"allowlistAux,omitempty"`
}

func (s *Server) handleDepositSell(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req depositSellRequest
	if !s.decode(w, r, &req) {
		return
	}
	args := pool.DepositSellArgs{
		PoolID:       id,
		AssetAmount:  req.AssetAmount,
		AllowlistAux: req.AllowlistAux,
	}
	var err error
	if args.Owner, err = parseAddr(req.Owner); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if args.Cosigner, err = parseAddr(req.Cosigner); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if args.AssetMint, err = parseAddr(req.AssetMint); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	p, err := s.engine.DepositSell(args)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPoolView(p))
}

type withdrawSellRequest struct {
	Owner       string `json:"owner"`
	Cosigner    string `json:"cosigner"`
	AssetMint   string `json:"assetMint"`
	AssetAmount uint64 `json:"assetAmount"`
}

func (s *Server) handleWithdrawSell(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req withdrawSellRequest
	if !s.decode(w, r, &req) {
		return
	}
	args := pool.WithdrawSellArgs{PoolID: id, AssetAmount: req.AssetAmount}
	var err error
	if args.Owner, err = parseAddr(req.Owner); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if args.Cosigner, err = parseAddr(req.Cosigner); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if args.AssetMint, err = parseAddr(req.AssetMint); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	p, err := s.engine.WithdrawSell(args)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPoolView(p))
}

type fulfillRequest struct {
	Payer            string `json:"payer"`
	Owner            string `json:"owner"`
	Cosigner         string `json:"cosigner"`
	Referral         string `json:"referral,omitempty"`
	AssetMint        string `json:"assetMint"`
	AssetAmount      uint64 `json:"assetAmount"`
	MinPaymentAmount uint64 `json:"minPaymentAmount,omitempty"`
	MaxPaymentAmount uint64 `json:"maxPaymentAmount,omitempty"`
	AllowlistAux     string `json:"allowlistAux,omitempty"`
}

func (req *fulfillRequest) addresses() (payer, owner, cosigner, referral [32]byte, err error) {
	if payer, err = parseAddr(req.Payer); err != nil {
		return
	}
	if owner, err = parseAddr(req.Owner); err != nil {
		return
	}
	if cosigner, err = parseAddr(req.Cosigner); err != nil {
		return
	}
	if req.Referral != "" {
		referral, err = parseAddr(req.Referral)
	}
	return
}

func (s *Server) handleFulfillBuy(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req fulfillRequest
	if !s.decode(w, r, &req) {
		return
	}
	payer, owner, cosigner, referral, err := req.addresses()
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	mint, err := parseAddr(req.AssetMint)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	res, err := s.engine.FulfillBuy(pool.FulfillBuyArgs{
		Payer:            payer,
		Owner:            owner,
		Cosigner:         cosigner,
		Referral:         referral,
		PoolID:           id,
		AssetMint:        mint,
		AssetAmount:      req.AssetAmount,
		MinPaymentAmount: req.MinPaymentAmount,
		AllowlistAux:     req.AllowlistAux,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("fulfill buy", "pool", addrHex(id), "mint", req.AssetMint, "total_price", res.TotalPrice)
	s.writeJSON(w, http.StatusOK, newFulfillView(res))
}

func (s *Server) handleFulfillSell(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req fulfillRequest
	if !s.decode(w, r, &req) {
		return
	}
	payer, owner, cosigner, referral, err := req.addresses()
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	mint, err := parseAddr(req.AssetMint)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	res, err := s.engine.FulfillSell(pool.FulfillSellArgs{
		Payer:            payer,
		Owner:            owner,
		Cosigner:         cosigner,
		Referral:         referral,
		PoolID:           id,
		AssetMint:        mint,
		AssetAmount:      req.AssetAmount,
		MaxPaymentAmount: req.MaxPaymentAmount,
		AllowlistAux:     req.AllowlistAux,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("fulfill sell", "pool", addrHex(id), "mint", req.AssetMint, "total_price", res.TotalPrice)
	s.writeJSON(w, http.StatusOK, newFulfillView(res))
}

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if !s.decode(w, r, &req) {
		return
	}
	meta, err := req.toMetadata()
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.state.RegisterAssetMetadata(meta); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"mint": addrHex(meta.Mint)})
}

type fundRequest struct {
	Address     string `json:"address"`
	Amount      uint64 `json:"amount,omitempty"`
	AssetMint   string `json:"assetMint,omitempty"`
	AssetAmount uint64 `json:"assetAmount,omitempty"`
}

// handleFund credits dev balances and token holdings. Only mounted when the
// faucet is enabled.
func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if !s.decode(w, r, &req) {
		return
	}
	address, err := parseAddr(req.Address)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Amount > 0 {
		if err := s.state.Credit(address, req.Amount); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.AssetAmount > 0 {
		mint, err := parseAddr(req.AssetMint)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if err := s.state.MintTokens(address, mint, req.AssetAmount); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"address": addrHex(address)})
}
