/**
 * @description
 * This file provides an in-memory implementation of the `Repository` interface.
 * It backs local development runs (no DATABASE_URL configured) and the test suite,
 * where spinning up PostgreSQL would be overkill.
 *
 * @notes
 * - A single RWMutex guards the maps so individual reads and writes are atomic,
 *   matching the per-record atomicity the Postgres implementation gets from the
 *   database. Cross-record consistency (check-then-act spans) is still the account
 *   lease's job, exactly as with the Postgres repository.
 * - All returns are copies; internal pointers never escape.
 */

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

// MemoryRepository is a map-backed implementation of the Repository interface.
type MemoryRepository struct {
	mu          sync.RWMutex
	owners      map[uuid.UUID]domain.Owner
	ownerNames  map[string]uuid.UUID
	accounts    map[uuid.UUID]domain.Account
	payments    map[uuid.UUID]domain.Payment
	paymentRefs map[string]uuid.UUID
	paymentLog  []uuid.UUID // insertion order, append-only
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		owners:      make(map[uuid.UUID]domain.Owner),
		ownerNames:  make(map[string]uuid.UUID),
		accounts:    make(map[uuid.UUID]domain.Account),
		payments:    make(map[uuid.UUID]domain.Payment),
		paymentRefs: make(map[string]uuid.UUID),
	}
}

// CreateOwner inserts a new owner record.
func (r *MemoryRepository) CreateOwner(ctx context.Context, owner *domain.Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.ownerNames[owner.Name]; taken {
		return ErrDuplicateOwner
	}
	r.owners[owner.ID] = *owner
	r.ownerNames[owner.Name] = owner.ID
	return nil
}

// GetOwner retrieves an owner by id.
func (r *MemoryRepository) GetOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[ownerID]
	if !ok {
		return nil, ErrOwnerNotFound
	}
	return &owner, nil
}

// ListOwners returns all owners ordered by name.
func (r *MemoryRepository) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owners := make([]domain.Owner, 0, len(r.owners))
	for _, owner := range r.owners {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].Name < owners[j].Name })
	return owners, nil
}

// RenameOwner updates an owner's display name.
func (r *MemoryRepository) RenameOwner(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[ownerID]
	if !ok {
		return nil, ErrOwnerNotFound
	}
	if takenBy, taken := r.ownerNames[name]; taken && takenBy != ownerID {
		return nil, ErrDuplicateOwner
	}
	delete(r.ownerNames, owner.Name)
	owner.Name = name
	r.owners[ownerID] = owner
	r.ownerNames[name] = ownerID
	return &owner, nil
}

// DeleteOwner removes an owner, refusing while accounts still reference it.
func (r *MemoryRepository) DeleteOwner(ctx context.Context, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[ownerID]
	if !ok {
		return ErrOwnerNotFound
	}
	for _, account := range r.accounts {
		if account.OwnerID == ownerID {
			return ErrOwnerHasAccounts
		}
	}
	delete(r.ownerNames, owner.Name)
	delete(r.owners, ownerID)
	return nil
}

// CreateAccount inserts a new account record.
func (r *MemoryRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[account.OwnerID]; !ok {
		return ErrOwnerNotFound
	}
	r.accounts[account.ID] = *account
	return nil
}

// GetAccount retrieves an account by id.
func (r *MemoryRepository) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

// ListAccounts returns accounts matching the filter options, oldest first.
func (r *MemoryRepository) ListAccounts(ctx context.Context, opts domain.AccountListOptions) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := []domain.Account{}
	for _, account := range r.accounts {
		if opts.OwnerID != nil && account.OwnerID != *opts.OwnerID {
			continue
		}
		if opts.Currency != "" && account.Currency != opts.Currency {
			continue
		}
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID.String() < accounts[j].ID.String()
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

// DeleteAccount removes an account record, keeping its payment history.
func (r *MemoryRepository) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[accountID]; !ok {
		return ErrAccountNotFound
	}
	delete(r.accounts, accountID)
	return nil
}

// CreatePayment inserts a new payment record.
func (r *MemoryRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if payment.ClientReference != nil {
		if _, taken := r.paymentRefs[*payment.ClientReference]; taken {
			return ErrDuplicatePayment
		}
	}
	r.payments[payment.ID] = *payment
	r.paymentLog = append(r.paymentLog, payment.ID)
	if payment.ClientReference != nil {
		r.paymentRefs[*payment.ClientReference] = payment.ID
	}
	return nil
}

// GetPayment retrieves a payment by id.
func (r *MemoryRepository) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	payment, ok := r.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &payment, nil
}

// FindPaymentByClientReference retrieves a payment by its client-supplied reference.
func (r *MemoryRepository) FindPaymentByClientReference(ctx context.Context, clientReference string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paymentID, ok := r.paymentRefs[clientReference]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	payment := r.payments[paymentID]
	return &payment, nil
}

// UpdatePaymentStatus writes a payment's new status and confirmation timestamp.
func (r *MemoryRepository) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status domain.PaymentStatus, confirmedAt *time.Time) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	payment.Status = status
	payment.ConfirmedAt = confirmedAt
	r.payments[paymentID] = payment
	return &payment, nil
}

// ListPaymentsForAccount returns the payments touching an account, oldest first.
func (r *MemoryRepository) ListPaymentsForAccount(ctx context.Context, accountID uuid.UUID, opts domain.PaymentListOptions) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := []domain.Payment{}
	for _, paymentID := range r.paymentLog {
		payment := r.payments[paymentID]
		touches := (payment.SourceAccountID != nil && *payment.SourceAccountID == accountID) ||
			(payment.DestinationAccountID != nil && *payment.DestinationAccountID == accountID)
		if !touches {
			continue
		}
		if opts.Status != "" && payment.Status != opts.Status {
			continue
		}
		matches = append(matches, payment)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(matches) {
			return []domain.Payment{}, nil
		}
		matches = matches[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(matches) {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}
