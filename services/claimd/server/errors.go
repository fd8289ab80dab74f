package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"claimdrop/native/airdrop"
	"claimdrop/native/fees"
	"claimdrop/native/staking"
	"claimdrop/observability/metrics"
	"claimdrop/services/claimd/node"
	"claimdrop/services/claimd/store"
)

var errBadRequest = errors.New("claimd: malformed request")

type problem struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, problem{Error: message, Kind: kind, RequestID: requestIDFromContext(r.Context())})
}

// statusFor maps a ledger error onto an HTTP status and error kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, string(airdrop.KindValidation)
	case errors.Is(err, node.ErrNotOperator), errors.Is(err, staking.ErrNotStakeOwner):
		return http.StatusForbidden, string(airdrop.KindAccess)
	case errors.Is(err, node.ErrStakingUnavailable):
		return http.StatusNotFound, string(airdrop.KindState)
	case errors.Is(err, staking.ErrStakeNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, staking.ErrNothingClaimable):
		return http.StatusConflict, string(airdrop.KindState)
	case errors.Is(err, fees.ErrInsufficientFee):
		return http.StatusPaymentRequired, string(airdrop.KindResource)
	}
	kind := airdrop.ErrorKind(err)
	switch kind {
	case airdrop.KindValidation:
		return http.StatusBadRequest, string(kind)
	case airdrop.KindAuthorization:
		return http.StatusUnauthorized, string(kind)
	case airdrop.KindAccess:
		return http.StatusForbidden, string(kind)
	case airdrop.KindState:
		return http.StatusConflict, string(kind)
	case airdrop.KindResource:
		return http.StatusUnprocessableEntity, string(kind)
	case airdrop.KindOracle:
		return http.StatusServiceUnavailable, string(kind)
	default:
		return http.StatusInternalServerError, string(airdrop.KindInternal)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	metrics.Airdrop().RecordRejection(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err)
		message = http.StatusText(status)
	}
	writeProblem(w, r, status, kind, message)
}
