package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"subreg/internal/namehash"
	"subreg/internal/payments"
	"subreg/internal/platform/metrics"
	"subreg/internal/registrar/service"
	dErrors "subreg/pkg/domain-errors"
)

// Handler is the thin HTTP layer. It delegates to the registrar service
// without embedding business logic so transport concerns remain isolated.
type Handler struct {
	svc     *service.Service
	ledger  payments.Ledger
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(svc *service.Service, ledger payments.Ledger, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, ledger: ledger, logger: logger, metrics: m}
}

// labelParam accepts either a 0x-prefixed 32-byte label hash or a
// human-readable parent label, which is hashed server-side. No
// normalization: labels are hashed as given.
func labelParam(r *http.Request) common.Hash {
	raw := chi.URLParam(r, "label")
	if strings.HasPrefix(raw, "0x") && len(raw) == 66 {
		return common.HexToHash(raw)
	}
	return namehash.LabelHash(raw)
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "amount is required")
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "amount must be a non-negative decimal string")
	}
	return amount, nil
}

func parseAddress(s string, required bool) (common.Address, error) {
	if s == "" {
		if required {
			return common.Address{}, dErrors.New(dErrors.CodeBadRequest, "address is required")
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, dErrors.New(dErrors.CodeBadRequest, "malformed address")
	}
	return common.HexToAddress(s), nil
}

func decode(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

type configureRequest struct {
	Name            string `json:"name"`
	Price           string `json:"price"`
	ReferralRatePpm uint32 `json:"referral_rate_ppm"`
}

func (h *Handler) handleConfigure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req configureRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Configure(ctx, GetCaller(ctx), labelParam(r), req.Name, price, req.ReferralRatePpm); err != nil {
		h.logWarn(ctx, "configure rejected", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	Administrator string `json:"administrator"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req transferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	newAdmin, err := parseAddress(req.Administrator, true)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.TransferAdministrator(ctx, GetCaller(ctx), labelParam(r), newAdmin); err != nil {
		h.logWarn(ctx, "transfer rejected", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type migrationTargetRequest struct {
	Target string `json:"target"`
}

func (h *Handler) handleSetMigrationTarget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req migrationTargetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	target, err := parseAddress(req.Target, true)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.SetMigrationTarget(ctx, GetCaller(ctx), labelParam(r), target); err != nil {
		h.logWarn(ctx, "set migration target rejected", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.Unlist(ctx, GetCaller(ctx), labelParam(r)); err != nil {
		h.logWarn(ctx, "unlist rejected", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resolverRequest struct {
	Resolver string `json:"resolver"`
}

func (h *Handler) handleSetResolver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req resolverRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resolver, err := parseAddress(req.Resolver, true)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.SetResolver(ctx, GetCaller(ctx), labelParam(r), resolver); err != nil {
		h.logWarn(ctx, "set resolver rejected", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.Upgrade(ctx, GetCaller(ctx), labelParam(r)); err != nil {
		h.logWarn(ctx, "upgrade rejected", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queryResponse struct {
	Protocol    string `json:"protocol"`
	Available   bool   `json:"available"`
	Name        string `json:"name,omitempty"`
	Price       string `json:"price,omitempty"`
	ReferralPpm uint32 `json:"referral_ppm,omitempty"`
	RentDue     string `json:"rent_due,omitempty"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.svc.Query(ctx, labelParam(r), r.URL.Query().Get("subdomain"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := queryResponse{
		Protocol:    result.Protocol,
		Available:   result.Available,
		Name:        result.Name,
		ReferralPpm: result.ReferralPpm,
	}
	if result.Price != nil {
		resp.Price = result.Price.String()
	}
	if result.RentDue != nil {
		resp.RentDue = result.RentDue.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerRequest struct {
	Subdomain string `json:"subdomain"`
	Caller    string `json:"caller"`
	Owner     string `json:"owner"`
	Referrer  string `json:"referrer"`
	Resolver  string `json:"resolver"`
	Paid      string `json:"paid"`
}

type registerResponse struct {
	ChildNode string `json:"child_node"`
	Owner     string `json:"owner"`
	Refund    string `json:"refund"`
	Referral  string `json:"referral"`
	Proceeds  string `json:"proceeds"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	caller, err := parseAddress(req.Caller, true)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress(req.Owner, false)
	if err != nil {
		writeError(w, err)
		return
	}
	referrer, err := parseAddress(req.Referrer, false)
	if err != nil {
		writeError(w, err)
		return
	}
	resolver, err := parseAddress(req.Resolver, false)
	if err != nil {
		writeError(w, err)
		return
	}
	paid, err := parseAmount(req.Paid)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Register(ctx, service.RegisterRequest{
		Label:        labelParam(r),
		Subdomain:    req.Subdomain,
		Caller:       caller,
		NewOwner:     owner,
		Referrer:     referrer,
		ResolverAddr: resolver,
		Paid:         paid,
	})
	if err != nil {
		h.logWarn(ctx, "register rejected", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		ChildNode: result.ChildNode.Hex(),
		Owner:     result.Owner.Hex(),
		Refund:    result.Refund.String(),
		Referral:  result.Referral.String(),
		Proceeds:  result.Proceeds.String(),
	})
}

type rentRequest struct {
	Subdomain string `json:"subdomain"`
	Paid      string `json:"paid"`
}

func (h *Handler) handlePayRent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req rentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	paid, err := parseAmount(req.Paid)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.PayRent(ctx, GetCaller(ctx), labelParam(r), req.Subdomain, paid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type withdrawResponse struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := GetCaller(ctx)
	amount, err := h.ledger.Withdraw(ctx, caller)
	if err != nil {
		h.logger.ErrorContext(ctx, "withdraw failed",
			"request_id", GetRequestID(ctx), "error", err.Error())
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "withdraw balance"))
		return
	}
	if h.metrics != nil {
		h.metrics.WithdrawalsTotal.Inc()
	}
	writeJSON(w, http.StatusOK, withdrawResponse{
		Account: caller.Hex(),
		Amount:  amount.String(),
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logWarn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", GetRequestID(ctx),
		"error", err.Error(),
	)
}
