/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the ledger-service. By defining an interface,
 * we decouple the application's business logic from the specific database
 * implementation (PostgreSQL in production, in-memory for tests and local runs).
 *
 * @notes
 * - The repository is a thin persistence layer. It performs no locking of its own:
 *   every balance-affecting write must be issued while the caller holds the account
 *   lease(s) from the app-level locker. Each write is atomic with respect to the
 *   single record it touches.
 * - Status transitions are not validated here either; the state machine in
 *   internal/app owns that decision and the repository trusts it.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

var (
	ErrOwnerNotFound    = errors.New("owner not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrDuplicateOwner   = errors.New("owner name already taken")
	ErrDuplicatePayment = errors.New("payment client reference already used")
	ErrOwnerHasAccounts = errors.New("owner still has accounts")
)

// Repository defines the set of methods for interacting with persisted ledger state.
type Repository interface {
	// Owner methods
	CreateOwner(ctx context.Context, owner *domain.Owner) error
	GetOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Owner, error)
	ListOwners(ctx context.Context) ([]domain.Owner, error)
	RenameOwner(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Owner, error)
	// DeleteOwner fails with ErrOwnerHasAccounts while any account still
	// references the owner.
	DeleteOwner(ctx context.Context, ownerID uuid.UUID) error

	// Account methods
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	ListAccounts(ctx context.Context, opts domain.AccountListOptions) ([]domain.Account, error)
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error

	// Payment methods
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error)
	FindPaymentByClientReference(ctx context.Context, clientReference string) (*domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status domain.PaymentStatus, confirmedAt *time.Time) (*domain.Payment, error)
	// ListPaymentsForAccount returns payments where the account is source or
	// destination, oldest first.
	ListPaymentsForAccount(ctx context.Context, accountID uuid.UUID, opts domain.PaymentListOptions) ([]domain.Payment, error)
}
