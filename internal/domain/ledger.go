/**
 * @description
 * This file defines the core domain models for the ledger-service. These structs
 * represent the main entities and data transfer objects (DTOs) used throughout the
 * service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database records, and computed views
 *   ensures clear separation of concerns and type safety.
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (e.g., cents), which avoids floating-point inaccuracies with financial data.
 * - Account balances are never stored. They are derived from the account's payment
 *   history, so a balance figure can only drift if the history itself is corrupted.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentKind enumerates the supported money movements.
type PaymentKind string

const (
	PaymentKindDeposit    PaymentKind = "deposit"
	PaymentKindWithdrawal PaymentKind = "withdrawal"
	PaymentKindTransfer   PaymentKind = "transfer"
)

// PaymentStatus enumerates the payment lifecycle states. Pending payments hold a
// reservation against the source account; confirmed and cancelled are terminal.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Owner is an account holder reference. It has limited information and currently
// only holds a name; many accounts may reference one owner.
type Owner struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is a currency-scoped balance holder owned by one Owner. The currency is
// fixed at creation. This struct maps directly to the `accounts` table; note the
// absence of a balance column.
type Account struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Currency  string    `json:"currency"` // 3-letter ISO code, e.g. "USD"
	CreatedAt time.Time `json:"created_at"`
}

// Payment is the central ledger record for any money movement. Deposits carry only
// a destination account, withdrawals only a source, transfers both.
type Payment struct {
	ID                   uuid.UUID     `json:"id"`
	Kind                 PaymentKind   `json:"kind"`
	Status               PaymentStatus `json:"status"`
	SourceAccountID      *uuid.UUID    `json:"source_account_id,omitempty"`
	DestinationAccountID *uuid.UUID    `json:"destination_account_id,omitempty"`
	Amount               int64         `json:"amount"` // in minor units
	Currency             string        `json:"currency"`
	ClientReference      *string       `json:"client_reference,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	ConfirmedAt          *time.Time    `json:"confirmed_at,omitempty"`
}

// PaymentSpec is the DTO for incoming payment admission requests.
type PaymentSpec struct {
	Kind                 PaymentKind `json:"kind"`
	SourceAccountID      *uuid.UUID  `json:"source_account_id,omitempty"`
	DestinationAccountID *uuid.UUID  `json:"destination_account_id,omitempty"`
	Amount               int64       `json:"amount"` // in minor units
	Currency             string      `json:"currency"`
	ClientReference      *string     `json:"client_reference,omitempty"`
}

// AccountBalance holds the derived balance figures for one account.
//
// Committed is the sum of effects from confirmed payments only. PendingDebits is
// the sum of outstanding pending withdrawals and outgoing transfers. Available is
// Committed minus PendingDebits; pending incoming credits never raise it, since a
// pending deposit is not guaranteed.
type AccountBalance struct {
	Committed     int64 `json:"committed_balance"`     // in minor units
	Available     int64 `json:"available_balance"`     // in minor units
	PendingDebits int64 `json:"pending_debits"`        // in minor units
}

// AccountDetails is the API view of an account together with its derived balances.
type AccountDetails struct {
	Account
	Balance AccountBalance `json:"balance"`
}

// CreateOwnerRequest is the DTO for owner registration.
type CreateOwnerRequest struct {
	Name string `json:"name"`
}

// RenameOwnerRequest is the DTO for owner renames.
type RenameOwnerRequest struct {
	Name string `json:"name"`
}

// CreateAccountRequest is the DTO for opening a new account. Balances always start
// at zero, so only the owner and currency are taken.
type CreateAccountRequest struct {
	OwnerID  uuid.UUID `json:"owner_id"`
	Currency string    `json:"currency"`
}

// UpdatePaymentStatusRequest is the DTO for the confirm/cancel follow-up action of
// the two-step payment protocol.
type UpdatePaymentStatusRequest struct {
	Status PaymentStatus `json:"status"`
}

// AccountListOptions controls filtering for account listings.
type AccountListOptions struct {
	OwnerID  *uuid.UUID
	Currency string
}

// PaymentListOptions controls pagination and filtering for payment listings.
// A zero Limit means no limit; Status empty means all statuses.
type PaymentListOptions struct {
	Limit  int
	Offset int
	Status PaymentStatus
}
