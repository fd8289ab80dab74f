package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"claimdrop/crypto"
	"claimdrop/native/airdrop"
	"claimdrop/native/fees"
	"claimdrop/native/staking"
	"claimdrop/services/claimd/store"
)

type optionsJSON struct {
	OptionID          uint64 `json:"optionId"`
	Multiplier        uint64 `json:"multiplier"`
	PercentageToClaim uint64 `json:"percentageToClaim"`
	PercentageToStake uint64 `json:"percentageToStake"`
	LockupPeriod      uint64 `json:"lockupPeriod"`
}

func (o optionsJSON) options() airdrop.ClaimOptions {
	return airdrop.ClaimOptions{
		OptionID:          o.OptionID,
		Multiplier:        o.Multiplier,
		PercentageToClaim: o.PercentageToClaim,
		PercentageToStake: o.PercentageToStake,
		LockupPeriod:      o.LockupPeriod,
	}
}

type authorizationJSON struct {
	Beneficiary     string      `json:"beneficiary"`
	TotalAllocation string      `json:"totalAllocation"`
	Options         optionsJSON `json:"options"`
	Nonce           string      `json:"nonce"`
}

type claimRequestJSON struct {
	authorizationJSON
	Proof     []string `json:"proof"`
	Signature string   `json:"signature"`
	Payment   string   `json:"payment"`
}

type feesJSON struct {
	PriceFeed              string `json:"priceFeed,omitempty"`
	MaxPriceAge            uint64 `json:"maxPriceAge"`
	ProtocolTreasury       string `json:"protocolTreasury,omitempty"`
	ProtocolOverflow       string `json:"protocolOverflow,omitempty"`
	PartnerOverflow        string `json:"partnerOverflow,omitempty"`
	FeeClaimUsdCents       uint64 `json:"feeClaimUsdCents"`
	FeeStakeUsdCents       uint64 `json:"feeStakeUsdCents"`
	FeeCapUsdCents         uint64 `json:"feeCapUsdCents"`
	TotalFeeUsdCents       uint64 `json:"totalFeeUsdCents"`
	OverflowMode           string `json:"overflowMode"`
	ProtocolTokenShareBips uint64 `json:"protocolTokenShareBips"`
}

type instanceJSON struct {
	Address                        string   `json:"address"`
	Deployer                       string   `json:"deployer"`
	Admin                          string   `json:"admin"`
	Root                           string   `json:"root"`
	Asset                          string   `json:"asset"`
	Staking                        string   `json:"staking,omitempty"`
	Multiplier                     uint64   `json:"multiplier"`
	MaxBonus                       string   `json:"maxBonus"`
	MinLockupDuration              uint64   `json:"minLockupDuration"`
	MinLockupDurationForMultiplier uint64   `json:"minLockupDurationForMultiplier"`
	Active                         bool     `json:"active"`
	Paused                         bool     `json:"paused"`
	TotalClaimed                   string   `json:"totalClaimed"`
	TotalStaked                    string   `json:"totalStaked"`
	TotalBonusTokens               string   `json:"totalBonusTokens"`
	ProtocolAccruedTokens          string   `json:"protocolAccruedTokens"`
	Balance                        string   `json:"balance"`
	ChainID                        string   `json:"chainId"`
	DomainSeparator                string   `json:"domainSeparator"`
	InitializedAt                  uint64   `json:"initializedAt"`
	Fees                           feesJSON `json:"fees"`
}

type settlementJSON struct {
	Instance        string      `json:"instance"`
	Beneficiary     string      `json:"beneficiary"`
	Caller          string      `json:"caller"`
	Nonce           string      `json:"nonce"`
	Options         optionsJSON `json:"options"`
	TotalAllocation string      `json:"totalAllocation"`
	AmountClaimed   string      `json:"amountClaimed"`
	AmountStaked    string      `json:"amountStaked"`
	Bonus           string      `json:"bonus"`
	ProtocolShare   string      `json:"protocolShare"`
	StakeID         uint64      `json:"stakeId,omitempty"`
	FeePaid         string      `json:"feePaid"`
	FeeRefund       string      `json:"feeRefund"`
	FeeReceiver     string      `json:"feeReceiver,omitempty"`
	FeeUsdCents     uint64      `json:"feeUsdCents"`
	FeePostCap      bool        `json:"feePostCap"`
	OverflowMode    string      `json:"overflowMode"`
	SettledAt       uint64      `json:"settledAt"`
}

type stakeJSON struct {
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Funder    string `json:"funder"`
	Amount    string `json:"amount"`
	Claimed   string `json:"claimed"`
	Claimable string `json:"claimable"`
	Start     uint64 `json:"start"`
	Duration  uint64 `json:"duration"`
}

func hexAddr(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return "0x" + hex.EncodeToString(addr[:])
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func parseAddressField(name, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return addr, badRequest("%s: %v", name, err)
	}
	return addr, nil
}

func parseAmountField(name, value string, allowEmpty bool) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if allowEmpty {
			return big.NewInt(0), nil
		}
		return nil, badRequest("%s required", name)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, badRequest("%s must be a non-negative integer", name)
	}
	return amount, nil
}

func parseHashField(name, value string) ([32]byte, error) {
	var out [32]byte
	raw, err := hexutil.Decode(strings.TrimSpace(value))
	if err != nil {
		return out, badRequest("%s: %v", name, err)
	}
	if len(raw) != len(out) {
		return out, badRequest("%s must be 32 bytes", name)
	}
	copy(out[:], raw)
	return out, nil
}

func parseUintParam(name, value string) (uint64, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, badRequest("%s must be an unsigned integer", name)
	}
	return parsed, nil
}

func (a authorizationJSON) parse() ([20]byte, *big.Int, [32]byte, error) {
	beneficiary, err := parseAddressField("beneficiary", a.Beneficiary)
	if err != nil {
		return beneficiary, nil, [32]byte{}, err
	}
	total, err := parseAmountField("totalAllocation", a.TotalAllocation, false)
	if err != nil {
		return beneficiary, nil, [32]byte{}, err
	}
	nonce, err := parseHashField("nonce", a.Nonce)
	if err != nil {
		return beneficiary, nil, nonce, err
	}
	return beneficiary, total, nonce, nil
}

func (c claimRequestJSON) parse() (airdrop.ClaimRequest, *big.Int, error) {
	beneficiary, total, nonce, err := c.authorizationJSON.parse()
	if err != nil {
		return airdrop.ClaimRequest{}, nil, err
	}
	proof := make([][32]byte, len(c.Proof))
	for i, node := range c.Proof {
		if proof[i], err = parseHashField(fmt.Sprintf("proof[%d]", i), node); err != nil {
			return airdrop.ClaimRequest{}, nil, err
		}
	}
	signature, err := hexutil.Decode(strings.TrimSpace(c.Signature))
	if err != nil {
		return airdrop.ClaimRequest{}, nil, badRequest("signature: %v", err)
	}
	payment, err := parseAmountField("payment", c.Payment, true)
	if err != nil {
		return airdrop.ClaimRequest{}, nil, err
	}
	return airdrop.ClaimRequest{
		Beneficiary:     beneficiary,
		TotalAllocation: total,
		Proof:           proof,
		Options:         c.Options.options(),
		Nonce:           nonce,
		Signature:       signature,
	}, payment, nil
}

func feesView(cfg fees.Config) feesJSON {
	return feesJSON{
		PriceFeed:              hexAddr(cfg.PriceFeed),
		MaxPriceAge:            cfg.MaxPriceAge,
		ProtocolTreasury:       hexAddr(cfg.ProtocolTreasury),
		ProtocolOverflow:       hexAddr(cfg.ProtocolOverflow),
		PartnerOverflow:        hexAddr(cfg.PartnerOverflow),
		FeeClaimUsdCents:       cfg.FeeClaimUsdCents,
		FeeStakeUsdCents:       cfg.FeeStakeUsdCents,
		FeeCapUsdCents:         cfg.FeeCapUsdCents,
		TotalFeeUsdCents:       cfg.TotalFeeUsdCents,
		OverflowMode:           cfg.OverflowMode.String(),
		ProtocolTokenShareBips: cfg.ProtocolTokenShareBips,
	}
}

func settlementView(s *airdrop.Settlement) settlementJSON {
	opts := s.Options
	return settlementJSON{
		Instance:    hexAddr(s.Instance),
		Beneficiary: hexAddr(s.Beneficiary),
		Caller:      hexAddr(s.Caller),
		Nonce:       hexutil.Encode(s.Nonce[:]),
		Options: optionsJSON{
			OptionID:          opts.OptionID,
			Multiplier:        opts.Multiplier,
			PercentageToClaim: opts.PercentageToClaim,
			PercentageToStake: opts.PercentageToStake,
			LockupPeriod:      opts.LockupPeriod,
		},
		TotalAllocation: amountString(s.TotalAllocation),
		AmountClaimed:   amountString(s.AmountClaimed),
		AmountStaked:    amountString(s.AmountStaked),
		Bonus:           amountString(s.Bonus),
		ProtocolShare:   amountString(s.ProtocolShare),
		StakeID:         s.StakeID,
		FeePaid:         amountString(s.FeePaid),
		FeeRefund:       amountString(s.FeeRefund),
		FeeReceiver:     hexAddr(s.FeeReceiver),
		FeeUsdCents:     s.FeeUsdCents,
		FeePostCap:      s.FeePostCap,
		OverflowMode:    s.OverflowMode.String(),
		SettledAt:       s.SettledAt,
	}
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	engine := s.node.Engine()
	inst, balance, err := engine.InstanceWithBalance()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	separator, err := engine.DomainSeparator()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instanceJSON{
		Address:                        hexAddr(inst.Address),
		Deployer:                       hexAddr(inst.Deployer),
		Admin:                          hexAddr(inst.Admin),
		Root:                           hexutil.Encode(inst.Root[:]),
		Asset:                          inst.Asset,
		Staking:                        hexAddr(inst.Staking),
		Multiplier:                     inst.Multiplier,
		MaxBonus:                       amountString(inst.MaxBonus),
		MinLockupDuration:              inst.MinLockupDuration,
		MinLockupDurationForMultiplier: inst.MinLockupDurationForMultiplier,
		Active:                         inst.Active,
		Paused:                         inst.Paused,
		TotalClaimed:                   amountString(inst.TotalClaimed),
		TotalStaked:                    amountString(inst.TotalStaked),
		TotalBonusTokens:               amountString(inst.TotalBonusTokens),
		ProtocolAccruedTokens:          amountString(inst.ProtocolAccruedTokens),
		Balance:                        amountString(balance),
		ChainID:                        engine.ChainID().String(),
		DomainSeparator:                hexutil.Encode(separator[:]),
		InitializedAt:                  inst.InitializedAt,
		Fees:                           feesView(inst.Fees),
	})
}

func (s *Server) getClaim(w http.ResponseWriter, r *http.Request) {
	beneficiary, err := parseAddressField("beneficiary", chi.URLParam(r, "beneficiary"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	claimed, err := s.node.Engine().ClaimedAmount(beneficiary)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := map[string]any{
		"beneficiary": hexAddr(beneficiary),
		"claimed":     amountString(claimed),
	}
	if s.store != nil && claimed.Sign() > 0 {
		record, err := s.store.ForBeneficiary(r.Context(), s.node.Engine().Address(), beneficiary)
		switch {
		case err == nil:
			resp["settlement"] = record
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("settlement lookup failed", "beneficiary", hexAddr(beneficiary), "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getProof(w http.ResponseWriter, r *http.Request) {
	beneficiary, err := parseAddressField("beneficiary", chi.URLParam(r, "beneficiary"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tree := s.node.Tree()
	if tree == nil {
		writeProblem(w, r, http.StatusNotFound, "not_found", "allocations not loaded")
		return
	}
	allocation, ok := tree.Allocation(beneficiary)
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not_found", "no allocation for beneficiary")
		return
	}
	proof, _ := tree.Proof(beneficiary)
	encoded := make([]string, len(proof))
	for i, node := range proof {
		encoded[i] = hexutil.Encode(node[:])
	}
	root := tree.Root()
	writeJSON(w, http.StatusOK, map[string]any{
		"beneficiary":     hexAddr(beneficiary),
		"totalAllocation": amountString(allocation.Amount),
		"proof":           encoded,
		"root":            hexutil.Encode(root[:]),
	})
}

func (s *Server) getNonce(w http.ResponseWriter, r *http.Request) {
	beneficiary, err := parseAddressField("beneficiary", chi.URLParam(r, "beneficiary"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nonce, err := parseHashField("nonce", chi.URLParam(r, "nonce"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	used, err := s.node.Engine().IsNonceUsed(beneficiary, nonce)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"used": used})
}

func (s *Server) quoteClaim(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Options optionsJSON `json:"options"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	required, err := s.node.Engine().ValidateClaimOptions(body.Options.options())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"requiredPayment": amountString(required)})
}

func (s *Server) claimDigest(w http.ResponseWriter, r *http.Request) {
	var body authorizationJSON
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	beneficiary, total, nonce, err := body.parse()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	digest, err := s.node.Engine().ClaimDigest(beneficiary, total, body.Options.options(), nonce)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"digest": hexutil.Encode(digest[:])})
}

func (s *Server) submitClaim(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var body claimRequestJSON
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req, payment, err := body.parse()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	settlement, err := s.node.Engine().ClaimFor(caller, payment, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("claim settled",
		"request_id", requestIDFromContext(r.Context()),
		"beneficiary", hexAddr(settlement.Beneficiary),
		"caller", hexAddr(caller),
		"claimed", amountString(settlement.AmountClaimed),
		"staked", amountString(settlement.AmountStaked))
	writeJSON(w, http.StatusOK, settlementView(settlement))
}

func (s *Server) cancelNonce(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var body struct {
		Nonce string `json:"nonce"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	nonce, err := parseHashField("nonce", body.Nonce)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.node.Engine().CancelNonce(caller, nonce); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	if err := s.node.Engine().Pause(caller); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	if err := s.node.Engine().Unpause(caller); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

func (s *Server) setMultiplier(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var body struct {
		Multiplier uint64 `json:"multiplier"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.node.Engine().SetMultiplier(caller, body.Multiplier); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"multiplier": body.Multiplier})
}

func (s *Server) endAirdrop(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var body struct {
		Recipient string `json:"recipient"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	recipient, err := parseAddressField("recipient", body.Recipient)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	swept, err := s.node.Engine().EndAirdrop(caller, recipient)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("airdrop ended", "recipient", hexAddr(recipient), "swept", amountString(swept))
	writeJSON(w, http.StatusOK, map[string]string{"swept": amountString(swept)})
}

func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var body struct {
		Next string `json:"next"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	next, err := parseAddressField("next", body.Next)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.node.Engine().TransferOwnership(caller, next); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"admin": hexAddr(next)})
}

func (s *Server) updatePartnerOverflow(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var body struct {
		Next string `json:"next"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	next, err := parseAddressField("next", body.Next)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.node.Engine().UpdatePartnerOverflow(caller, next); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"partnerOverflow": hexAddr(next)})
}

func (s *Server) withdrawProtocol(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var body struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	recipient, err := parseAddressField("recipient", body.Recipient)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmountField("amount", body.Amount, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.node.Engine().WithdrawProtocolAccrued(caller, recipient, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"withdrawn": amountString(amount)})
}

func (s *Server) publishPrice(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var body struct {
		Answer string `json:"answer"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	answer, err := parseAmountField("answer", body.Answer, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	round, err := s.node.PublishPrice(caller, answer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"roundId":   round.RoundID,
		"answer":    amountString(round.Answer),
		"updatedAt": round.UpdatedAt,
	})
}

func (s *Server) listSettlements(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeProblem(w, r, http.StatusNotFound, "not_found", "settlement index disabled")
		return
	}
	query := store.Query{Instance: hexAddr(s.node.Engine().Address())}
	values := r.URL.Query()
	if raw := values.Get("beneficiary"); raw != "" {
		beneficiary, err := parseAddressField("beneficiary", raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		query.Beneficiary = hexAddr(beneficiary)
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := parseUintParam("limit", raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		query.Limit = int(min(limit, store.MaxPageSize))
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := parseUintParam("offset", raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		query.Offset = int(min(offset, 1<<31-1))
	}
	records, err := s.store.List(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": records})
}

func (s *Server) getStakes(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddressField("account", chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stakes, claimable, err := s.node.Stakes(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]stakeJSON, len(stakes))
	for i, stake := range stakes {
		out[i] = stakeView(stake, claimable[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakes": out})
}

func stakeView(stake *staking.Stake, claimable *big.Int) stakeJSON {
	return stakeJSON{
		ID:        stake.ID,
		Owner:     hexAddr(stake.Owner),
		Funder:    hexAddr(stake.Funder),
		Amount:    amountString(stake.Amount),
		Claimed:   amountString(stake.Claimed),
		Claimable: amountString(claimable),
		Start:     stake.Start,
		Duration:  stake.Duration,
	}
}

func (s *Server) claimStake(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var body struct {
		StakeID uint64 `json:"stakeId"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	released, err := s.node.ClaimStake(caller, body.StakeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"released": amountString(released)})
}
