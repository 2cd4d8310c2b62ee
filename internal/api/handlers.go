/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as
 * the bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/app"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// mapLedgerError translates the domain error taxonomy into HTTP status codes.
func mapLedgerError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrOwnerNotFound),
		errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrPaymentNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, app.ErrInsufficientFunds):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, app.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, store.ErrDuplicateOwner),
		errors.Is(err, store.ErrOwnerHasAccounts),
		errors.Is(err, app.ErrBalanceNotZero),
		errors.Is(err, app.ErrPendingPayments):
		return http.StatusConflict, err.Error()
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidPaymentKind),
		errors.Is(err, app.ErrAccountShape),
		errors.Is(err, app.ErrSameAccountTransfer),
		errors.Is(err, app.ErrCurrencyMismatch),
		errors.Is(err, app.ErrInvalidCurrency),
		errors.Is(err, app.ErrInvalidOwnerName):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, app.ErrLockTimeout):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}

// CreateOwnerHandler handles owner registration.
func (h *LedgerHandlers) CreateOwnerHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	owner, err := h.service.CreateOwner(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		h.respondError(w, "create_owner", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, owner)
}

// ListOwnersHandler returns all registered owners.
func (h *LedgerHandlers) ListOwnersHandler(w http.ResponseWriter, r *http.Request) {
	owners, err := h.service.ListOwners(r.Context())
	if err != nil {
		h.respondError(w, "list_owners", err)
		return
	}
	h.writeJSON(w, http.StatusOK, owners)
}

// GetOwnerHandler returns one owner by id.
func (h *LedgerHandlers) GetOwnerHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.pathID(w, r, "ownerID")
	if !ok {
		return
	}
	owner, err := h.service.GetOwner(r.Context(), ownerID)
	if err != nil {
		h.respondError(w, "get_owner", err)
		return
	}
	h.writeJSON(w, http.StatusOK, owner)
}

// RenameOwnerHandler changes an owner's name.
func (h *LedgerHandlers) RenameOwnerHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.pathID(w, r, "ownerID")
	if !ok {
		return
	}
	var req domain.RenameOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	owner, err := h.service.RenameOwner(r.Context(), ownerID, strings.TrimSpace(req.Name))
	if err != nil {
		h.respondError(w, "rename_owner", err)
		return
	}
	h.writeJSON(w, http.StatusOK, owner)
}

// DeleteOwnerHandler deletes an owner and their zero-balance accounts.
func (h *LedgerHandlers) DeleteOwnerHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.pathID(w, r, "ownerID")
	if !ok {
		return
	}
	if err := h.service.DeleteOwner(r.Context(), ownerID); err != nil {
		h.respondError(w, "delete_owner", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAccountHandler opens a new account.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	account, err := h.service.CreateAccount(r.Context(), req.OwnerID, strings.ToUpper(strings.TrimSpace(req.Currency)))
	if err != nil {
		h.respondError(w, "create_account", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// ListAccountsHandler returns accounts, optionally filtered by owner and currency.
func (h *LedgerHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	opts := domain.AccountListOptions{
		Currency: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("currency"))),
	}
	if raw := r.URL.Query().Get("owner_id"); raw != "" {
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid owner_id")
			return
		}
		opts.OwnerID = &ownerID
	}
	accounts, err := h.service.ListAccounts(r.Context(), opts)
	if err != nil {
		h.respondError(w, "list_accounts", err)
		return
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// GetAccountHandler returns one account together with its computed balances.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}
	details, err := h.service.GetAccountDetails(r.Context(), accountID)
	if err != nil {
		h.respondError(w, "get_account", err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

// DeleteAccountHandler deletes a zero-balance account.
func (h *LedgerHandlers) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}
	if err := h.service.DeleteAccount(r.Context(), accountID); err != nil {
		h.respondError(w, "delete_account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePaymentHandler admits a new payment into the ledger.
func (h *LedgerHandlers) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var spec domain.PaymentSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	spec.Currency = strings.ToUpper(strings.TrimSpace(spec.Currency))
	payment, err := h.service.AdmitPayment(r.Context(), spec)
	if err != nil {
		h.respondError(w, "admit_payment", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, payment)
}

// GetPaymentHandler returns one payment by id.
func (h *LedgerHandlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := h.pathID(w, r, "paymentID")
	if !ok {
		return
	}
	payment, err := h.service.GetPayment(r.Context(), paymentID)
	if err != nil {
		h.respondError(w, "get_payment", err)
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

// UpdatePaymentStatusHandler confirms or cancels a pending payment.
func (h *LedgerHandlers) UpdatePaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := h.pathID(w, r, "paymentID")
	if !ok {
		return
	}
	var req domain.UpdatePaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var payment *domain.Payment
	var err error
	switch req.Status {
	case domain.PaymentStatusConfirmed:
		payment, err = h.service.ConfirmPayment(r.Context(), paymentID)
	case domain.PaymentStatusCancelled:
		payment, err = h.service.CancelPayment(r.Context(), paymentID)
	default:
		h.writeError(w, http.StatusBadRequest, "Status must be 'confirmed' or 'cancelled'")
		return
	}
	if err != nil {
		h.respondError(w, "update_payment_status", err)
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

// ListPaymentsHandler returns the payment history for an account.
func (h *LedgerHandlers) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("account_id")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "account_id query parameter is required")
		return
	}
	accountID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account_id")
		return
	}
	limit, err := parseOptionalPositiveInt(r.URL.Query().Get("limit"), 50)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseOptionalPositiveInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}
	opts := domain.PaymentListOptions{
		Limit:  limit,
		Offset: offset,
		Status: domain.PaymentStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	payments, err := h.service.ListPaymentsForAccount(r.Context(), accountID, opts)
	if err != nil {
		h.respondError(w, "list_payments", err)
		return
	}
	h.writeJSON(w, http.StatusOK, payments)
}

// pathID parses a UUID path parameter, writing a 400 on failure.
func (h *LedgerHandlers) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalPositiveInt(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("value must be a non-negative integer")
	}
	return value, nil
}

// respondError maps a service error onto the wire, logging the unexpected ones.
func (h *LedgerHandlers) respondError(w http.ResponseWriter, endpoint string, err error) {
	status, message := mapLedgerError(err)
	if status == http.StatusInternalServerError {
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
	} else {
		log.Printf("level=warn component=api endpoint=%s outcome=reject status=%d err=%v", endpoint, status, err)
	}
	h.writeError(w, status, message)
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
