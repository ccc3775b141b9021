package rpc

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"margincore/crypto"
	"margincore/native/common"
	"margincore/native/margin"
)

// Server exposes the read surface of the settlement engine plus the
// administrative mode switch over HTTP.
type Server struct {
	engine *margin.Engine
	mode   *margin.AdminSwitch
	hub    *Hub
	log    *slog.Logger

	quota   common.RequestQuota
	quotaMu sync.Mutex
	usage   map[string]common.QuotaUsage
}

func NewServer(engine *margin.Engine, mode *margin.AdminSwitch, hub *Hub, log *slog.Logger, quota common.RequestQuota) *Server {
	return &Server{
		engine: engine,
		mode:   mode,
		hub:    hub,
		log:    log,
		quota:  quota,
		usage:  make(map[string]common.QuotaUsage),
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/positions/{id}", s.withTelemetry("position", s.withQuota(s.handleGetPosition)))
	r.Get("/v1/positions/{id}/balance", s.withTelemetry("position_balance", s.withQuota(s.handleGetBalance)))
	r.Get("/v1/positions/{id}/repaid", s.withTelemetry("position_repaid", s.withQuota(s.handleGetRepaid)))
	r.Get("/v1/offerings/{hash}", s.withTelemetry("offering", s.withQuota(s.handleGetOffering)))
	r.Get("/v1/mode", s.withTelemetry("mode", s.handleGetMode))
	r.Post("/v1/mode", s.withTelemetry("set_mode", s.handleSetMode))
	r.Get("/v1/events/ws", s.handleEventsWS)
	return r
}

type positionPayload struct {
	PositionID      string `json:"positionId"`
	OwedAsset       string `json:"owedAsset"`
	HeldAsset       string `json:"heldAsset"`
	Principal       string `json:"principal"`
	InterestRate    uint32 `json:"interestRate"`
	InterestPeriod  uint32 `json:"interestPeriod"`
	CallTimeLimit   uint32 `json:"callTimeLimit"`
	MaxDuration     uint32 `json:"maxDuration"`
	StartTimestamp  int64  `json:"startTimestamp"`
	CallTimestamp   int64  `json:"callTimestamp,omitempty"`
	RequiredDeposit string `json:"requiredDeposit"`
	Owner           string `json:"owner"`
	Lender          string `json:"lender"`
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	pos, err := s.engine.GetPosition(id)
	if err != nil {
		if s.engine.IsPositionClosed(id) {
			http.Error(w, "position closed", http.StatusGone)
			return
		}
		http.Error(w, "position not found", http.StatusNotFound)
		return
	}
	writeJSON(w, positionPayload{
		PositionID:      hex.EncodeToString(pos.ID[:]),
		OwedAsset:       pos.OwedAsset.String(),
		HeldAsset:       pos.HeldAsset.String(),
		Principal:       pos.Principal.String(),
		InterestRate:    pos.InterestRate,
		InterestPeriod:  pos.InterestPeriod,
		CallTimeLimit:   pos.CallTimeLimit,
		MaxDuration:     pos.MaxDuration,
		StartTimestamp:  pos.StartTimestamp,
		CallTimestamp:   pos.CallTimestamp,
		RequiredDeposit: pos.RequiredDeposit.String(),
		Owner:           pos.Owner.String(),
		Lender:          pos.Lender.String(),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !s.engine.ContainsPosition(id) {
		http.Error(w, "position not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{
		"positionId": hex.EncodeToString(id[:]),
		"balance":    s.engine.PositionBalance(id).String(),
	})
}

func (s *Server) handleGetRepaid(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, map[string]string{
		"positionId":      hex.EncodeToString(id[:]),
		"totalOwedRepaid": s.engine.TotalOwedRepaid(id).String(),
	})
}

func (s *Server) handleGetOffering(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHash(w, chi.URLParam(r, "hash"))
	if !ok {
		return
	}
	writeJSON(w, map[string]string{
		"loanHash": hex.EncodeToString(hash[:]),
		"filled":   s.engine.FilledAmount(hash).String(),
		"canceled": s.engine.CanceledAmount(hash).String(),
	})
}

func (s *Server) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"mode": s.mode.OperationState().String()})
}

type setModeRequest struct {
	Caller string `json:"caller"`
	Mode   string `json:"mode"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	caller, err := crypto.DecodeAddress(strings.TrimSpace(req.Caller))
	if err != nil {
		http.Error(w, "invalid caller address", http.StatusBadRequest)
		return
	}
	state, ok := parseMode(req.Mode)
	if !ok {
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}
	if err := s.mode.SetOperationState(caller, state); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if s.log != nil {
		s.log.Info("operation mode changed", "mode", state.String(), "caller", caller.String())
	}
	writeJSON(w, map[string]string{"mode": state.String()})
}

func parseMode(raw string) (common.OperationState, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "OPERATIONAL":
		return common.Operational, true
	case "CLOSE_AND_CANCEL_LOAN_ONLY":
		return common.CloseAndCancelLoanOnly, true
	case "CLOSE_ONLY":
		return common.CloseOnly, true
	case "CLOSE_DIRECTLY_ONLY":
		return common.CloseDirectlyOnly, true
	}
	return 0, false
}

func parseHash(w http.ResponseWriter, raw string) ([32]byte, bool) {
	var out [32]byte
	decoded, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil || len(decoded) != 32 {
		http.Error(w, "invalid identifier", http.StatusBadRequest)
		return out, false
	}
	copy(out[:], decoded)
	return out, true
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
	}
}
