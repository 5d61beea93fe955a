package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/openalpha/epoch-vault/api/middleware"
	"github.com/openalpha/epoch-vault/api/types"
	strategytypes "github.com/openalpha/epoch-vault/x/strategy/types"
	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

const maxBodyBytes = 1 << 16

var validate = newValidator()

// newValidator reports failing fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// VaultHandler serves the vault REST API
type VaultHandler struct {
	service   types.VaultService
	faucet    bool
	operators map[string]string
}

// NewVaultHandler creates a new VaultHandler. The faucet route is only
// registered when faucet is set. Allocation routes are only registered when
// operators (API key to agent address) is non-empty, and act as the agent
// bound to the caller's key.
func NewVaultHandler(service types.VaultService, faucet bool, operators map[string]string) *VaultHandler {
	return &VaultHandler{service: service, faucet: faucet, operators: operators}
}

// RegisterRoutes registers vault API routes
func (h *VaultHandler) RegisterRoutes(r *mux.Router) {
	// Pool routes
	r.HandleFunc("/v1/pools", h.GetPools).Methods(http.MethodGet)
	r.HandleFunc("/v1/pools/{poolId}", h.GetPool).Methods(http.MethodGet)
	r.HandleFunc("/v1/pools/{poolId}/status", h.GetPoolStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/pools/{poolId}/allowance", h.GetAllowance).Methods(http.MethodGet)
	r.HandleFunc("/v1/pools/{poolId}/epochs", h.GetEpochs).Methods(http.MethodGet)
	r.HandleFunc("/v1/pools/{poolId}/allocations", h.GetAllocations).Methods(http.MethodGet)

	// Depositor routes
	r.HandleFunc("/v1/pools/{poolId}/accounts/{address}", h.GetAccount).Methods(http.MethodGet)
	r.HandleFunc("/v1/pools/{poolId}/accounts/{address}/preview", h.PreviewWithdraw).Methods(http.MethodGet)

	// Transaction routes
	r.HandleFunc("/v1/pools/{poolId}/deposit", h.Deposit).Methods(http.MethodPost)
	r.HandleFunc("/v1/pools/{poolId}/withdraw", h.Withdraw).Methods(http.MethodPost)
	r.HandleFunc("/v1/pools/{poolId}/deploy", h.Deploy).Methods(http.MethodPost)

	// Operator routes
	if len(h.operators) > 0 {
		auth := middleware.RequireOperator(h.operators)
		r.Handle("/v1/pools/{poolId}/allocate", auth(http.HandlerFunc(h.Allocate))).Methods(http.MethodPost)
		r.Handle("/v1/pools/{poolId}/deallocate", auth(http.HandlerFunc(h.Deallocate))).Methods(http.MethodPost)
	}

	if h.faucet {
		r.HandleFunc("/v1/faucet", h.Faucet).Methods(http.MethodPost)
	}
}

// GetPools handles GET /v1/pools?offset=&limit=
func (h *VaultHandler) GetPools(w http.ResponseWriter, r *http.Request) {
	offset, err := queryUint(r, "offset")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_offset", err.Error())
		return
	}
	limit, err := queryUint(r, "limit")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	pools, total, err := h.service.GetPools(offset, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.PoolsResponse{Pools: pools, Total: total})
}

// GetPool handles GET /v1/pools/{poolId}
func (h *VaultHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.service.GetPool(mux.Vars(r)["poolId"])
	respond(w, r, pool, err)
}

// GetPoolStatus handles GET /v1/pools/{poolId}/status
func (h *VaultHandler) GetPoolStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetPoolStatus(mux.Vars(r)["poolId"])
	respond(w, r, status, err)
}

// GetAllowance handles GET /v1/pools/{poolId}/allowance
func (h *VaultHandler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	allowance, err := h.service.GetAllowance(mux.Vars(r)["poolId"])
	respond(w, r, allowance, err)
}

// GetEpochs handles GET /v1/pools/{poolId}/epochs
func (h *VaultHandler) GetEpochs(w http.ResponseWriter, r *http.Request) {
	epochs, err := h.service.GetEpochs(mux.Vars(r)["poolId"])
	if epochs == nil {
		epochs = []vaulttypes.EpochRecord{}
	}
	respond(w, r, types.EpochsResponse{Epochs: epochs}, err)
}

// GetAllocations handles GET /v1/pools/{poolId}/allocations
func (h *VaultHandler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	allocations, err := h.service.GetAllocations(mux.Vars(r)["poolId"])
	if allocations == nil {
		allocations = []strategytypes.Allocation{}
	}
	respond(w, r, types.AllocationsResponse{Allocations: allocations}, err)
}

// GetAccount handles GET /v1/pools/{poolId}/accounts/{address}
func (h *VaultHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account, err := h.service.GetAccount(vars["poolId"], vars["address"])
	respond(w, r, account, err)
}

// PreviewWithdraw handles GET /v1/pools/{poolId}/accounts/{address}/preview
func (h *VaultHandler) PreviewWithdraw(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	preview, err := h.service.PreviewWithdraw(vars["poolId"], vars["address"])
	respond(w, r, preview, err)
}

// Deposit handles POST /v1/pools/{poolId}/deposit
func (h *VaultHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req types.DepositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseInt(w, r, "amount", req.Amount)
	if !ok {
		return
	}

	receipt, err := h.service.Deposit(mux.Vars(r)["poolId"], req.Depositor, amount)
	respond(w, r, receipt, err)
}

// Withdraw handles POST /v1/pools/{poolId}/withdraw
func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req types.WithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	poolID := mux.Vars(r)["poolId"]

	if req.All {
		receipt, err := h.service.WithdrawAll(poolID, req.Withdrawer)
		respond(w, r, receipt, err)
		return
	}

	shares, ok := parseInt(w, r, "shares", req.Shares)
	if !ok {
		return
	}
	receipt, err := h.service.Withdraw(poolID, req.Withdrawer, shares)
	respond(w, r, receipt, err)
}

// Deploy handles POST /v1/pools/{poolId}/deploy
func (h *VaultHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	poolID := mux.Vars(r)["poolId"]
	deployed, err := h.service.Deploy(poolID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.DeployResponse{PoolID: poolID, DeployedAssets: deployed})
}

// Allocate handles POST /v1/pools/{poolId}/allocate
func (h *VaultHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	h.moveAllocation(w, r, h.service.Allocate)
}

// Deallocate handles POST /v1/pools/{poolId}/deallocate
func (h *VaultHandler) Deallocate(w http.ResponseWriter, r *http.Request) {
	h.moveAllocation(w, r, h.service.Deallocate)
}

func (h *VaultHandler) moveAllocation(
	w http.ResponseWriter,
	r *http.Request,
	move func(poolID, agent, strategyID string, amount math.Int) (math.Int, error),
) {
	agent, ok := middleware.GetOperator(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "operator api key required")
		return
	}
	var req types.AllocationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Agent != "" && req.Agent != agent {
		writeError(w, r, http.StatusForbidden, "agent_mismatch", "api key is bound to "+agent)
		return
	}
	amount, ok := parseInt(w, r, "amount", req.Amount)
	if !ok {
		return
	}

	poolID := mux.Vars(r)["poolId"]
	allocated, err := move(poolID, agent, req.StrategyID, amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.AllocationResponse{PoolID: poolID, StrategyID: req.StrategyID, Allocated: allocated})
}

// Faucet handles POST /v1/faucet
func (h *VaultHandler) Faucet(w http.ResponseWriter, r *http.Request) {
	var req types.FaucetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseInt(w, r, "amount", req.Amount)
	if !ok {
		return
	}

	balance, err := h.service.Faucet(req.Address, req.Denom, amount)
	respond(w, r, types.FaucetResponse{Address: req.Address, Denom: req.Denom, Balance: balance}, err)
}

// ============ Helpers ============

func respond(w http.ResponseWriter, r *http.Request, data interface{}, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+" is "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

func parseInt(w http.ResponseWriter, r *http.Request, field, raw string) (math.Int, bool) {
	v, ok := math.NewIntFromString(raw)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_"+field, field+" must be an integer amount")
		return math.Int{}, false
	}
	return v, true
}

func queryUint(r *http.Request, key string) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

// statusFor maps registered module errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, vaulttypes.ErrPoolNotFound),
		errors.Is(err, strategytypes.ErrPoolNotFound),
		errors.Is(err, strategytypes.ErrUnknownStrategy):
		return http.StatusNotFound
	case errors.Is(err, vaulttypes.ErrZeroAmount),
		errors.Is(err, vaulttypes.ErrZeroShares),
		errors.Is(err, vaulttypes.ErrDustDeposit),
		errors.Is(err, vaulttypes.ErrInvalidAddress),
		errors.Is(err, vaulttypes.ErrInsufficientShares),
		errors.Is(err, strategytypes.ErrZeroAmount),
		errors.Is(err, strategytypes.ErrInvalidAddress),
		errors.Is(err, sdkerrors.ErrInvalidAddress),
		errors.Is(err, sdkerrors.ErrInvalidCoins):
		return http.StatusBadRequest
	case errors.Is(err, vaulttypes.ErrNotOwner),
		errors.Is(err, vaulttypes.ErrUnauthorized),
		errors.Is(err, strategytypes.ErrUnauthorizedAgent):
		return http.StatusForbidden
	case errors.Is(err, vaulttypes.ErrNotCollecting),
		errors.Is(err, vaulttypes.ErrAlreadyDeployed),
		errors.Is(err, vaulttypes.ErrCapNotReached),
		errors.Is(err, vaulttypes.ErrNotDeployed),
		errors.Is(err, vaulttypes.ErrWindowNotOpen),
		errors.Is(err, vaulttypes.ErrSharesOutstanding),
		errors.Is(err, vaulttypes.ErrAllocationsOutstanding),
		errors.Is(err, strategytypes.ErrInsufficientIdle),
		errors.Is(err, strategytypes.ErrInsufficientAllocation):
		return http.StatusConflict
	case errors.Is(err, vaulttypes.ErrTransferFailed),
		errors.Is(err, vaulttypes.ErrTreasuryShortfall),
		errors.Is(err, strategytypes.ErrStrategyCallFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := "internal"
	if codespace, abci, _ := errorsmod.ABCIInfo(err, false); codespace != errorsmod.UndefinedCodespace {
		code = codespace + "/" + strconv.FormatUint(uint64(abci), 10)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, r, status, code, msg)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, types.ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
