/**
 * @description
 * This file contains the core business logic for the ledger-service. The `Service`
 * struct owns the payment state machine: it validates payment admissions, drives
 * the Pending → Confirmed/Cancelled lifecycle, and coordinates the account leases
 * that keep balance checks and writes atomic per account.
 *
 * Key features:
 * - Admission reserves funds against the available balance, so two concurrent
 *   withdrawals can never jointly overdraw an account.
 * - Confirmation and cancellation re-check the payment's status under the same
 *   lease set, making client retries safe.
 * - Owner and account lifecycle (create, rename, zero-balance-only deletion).
 * - Publishes payment lifecycle events to RabbitMQ for downstream consumers.
 *
 * @dependencies
 * - context, errors, log, regexp, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/store"
	"github.com/transfa/ledger-service/pkg/rabbitmq"
)

var (
	ErrInvalidAmount       = errors.New("payment amount must be positive")
	ErrInvalidPaymentKind  = errors.New("unknown payment kind")
	ErrAccountShape        = errors.New("account references do not match the payment kind")
	ErrSameAccountTransfer = errors.New("transfer source and destination must differ")
	ErrCurrencyMismatch    = errors.New("accounts and payment must all use the same currency")
	ErrInvalidCurrency     = errors.New("currency must be a 3-letter uppercase code")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidTransition   = errors.New("payment status transition not allowed")
	ErrInvalidOwnerName    = errors.New("owner name may only contain letters, numbers, underscores and hyphens")
	ErrBalanceNotZero      = errors.New("only accounts with zero balance can be deleted")
	ErrPendingPayments     = errors.New("account has pending payments")
	ErrRateLimited         = errors.New("too many payment admissions, slow down")
)

var (
	ownerNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	currencyPattern  = regexp.MustCompile(`^[A-Z]{3}$`)
)

// paymentTransitions is the exhaustive transition table of the payment state
// machine. Anything absent here is rejected; both terminal states have no exits.
var paymentTransitions = map[domain.PaymentStatus]map[domain.PaymentStatus]bool{
	domain.PaymentStatusPending: {
		domain.PaymentStatusConfirmed: true,
		domain.PaymentStatusCancelled: true,
	},
	domain.PaymentStatusConfirmed: {},
	domain.PaymentStatusCancelled: {},
}

func canTransition(from, to domain.PaymentStatus) bool {
	return paymentTransitions[from][to]
}

// RateLimiter is implemented by distributed rate limiters (see redis_rate_limiter.go).
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the ledger.
type Service struct {
	repo          store.Repository
	locker        *AccountLocker
	eventProducer rabbitmq.Publisher
	eventExchange string

	admitRateLimiter RateLimiter
	admitRateLimit   int // admissions per account per minute; 0 disables
}

// NewService creates a new ledger service instance.
func NewService(repo store.Repository, locker *AccountLocker, producer rabbitmq.Publisher, eventExchange string) *Service {
	return &Service{
		repo:          repo,
		locker:        locker,
		eventProducer: producer,
		eventExchange: eventExchange,
	}
}

// SetAdmitRateLimiter enables per-account admission rate limiting.
func (s *Service) SetAdmitRateLimiter(limiter RateLimiter, perMinute int) {
	s.admitRateLimiter = limiter
	s.admitRateLimit = perMinute
}

// CreateOwner registers a new owner.
func (s *Service) CreateOwner(ctx context.Context, name string) (*domain.Owner, error) {
	if !ownerNamePattern.MatchString(name) {
		return nil, ErrInvalidOwnerName
	}
	owner := &domain.Owner{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateOwner(ctx, owner); err != nil {
		return nil, err
	}
	log.Printf("level=info component=app op=create_owner owner_id=%s name=%s", owner.ID, owner.Name)
	return owner, nil
}

// GetOwner returns an owner by id.
func (s *Service) GetOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Owner, error) {
	return s.repo.GetOwner(ctx, ownerID)
}

// ListOwners returns all registered owners.
func (s *Service) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	return s.repo.ListOwners(ctx)
}

// RenameOwner changes an owner's name.
func (s *Service) RenameOwner(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Owner, error) {
	if !ownerNamePattern.MatchString(name) {
		return nil, ErrInvalidOwnerName
	}
	return s.repo.RenameOwner(ctx, ownerID, name)
}

// DeleteOwner removes an owner together with their accounts. It only succeeds if
// every owned account has a zero committed balance and no pending payments; the
// check and the deletions happen under one lease over all owned accounts.
func (s *Service) DeleteOwner(ctx context.Context, ownerID uuid.UUID) error {
	if _, err := s.repo.GetOwner(ctx, ownerID); err != nil {
		return err
	}
	accounts, err := s.repo.ListAccounts(ctx, domain.AccountListOptions{OwnerID: &ownerID})
	if err != nil {
		return err
	}

	accountIDs := make([]uuid.UUID, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.ID)
	}
	lease, err := s.locker.Acquire(ctx, accountIDs...)
	if err != nil {
		return err
	}
	defer lease.Release()

	for _, account := range accounts {
		if err := s.deletableUnderLease(ctx, account.ID); err != nil {
			return err
		}
	}
	for _, account := range accounts {
		if err := s.repo.DeleteAccount(ctx, account.ID); err != nil {
			return err
		}
	}
	if err := s.repo.DeleteOwner(ctx, ownerID); err != nil {
		return err
	}
	log.Printf("level=info component=app op=delete_owner owner_id=%s accounts_removed=%d", ownerID, len(accounts))
	return nil
}

// CreateAccount opens a new account for an owner. The balance always starts at
// zero; only the currency is chosen, and it is fixed for the account's lifetime.
func (s *Service) CreateAccount(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Account, error) {
	if !currencyPattern.MatchString(currency) {
		return nil, ErrInvalidCurrency
	}
	if _, err := s.repo.GetOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	account := &domain.Account{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	log.Printf("level=info component=app op=create_account account_id=%s owner_id=%s currency=%s", account.ID, ownerID, currency)
	return account, nil
}

// GetAccountDetails returns an account together with its derived balances. This is
// a listing-grade read: it takes no lease, so the figures may trail an in-flight
// admission by a moment. Funds checks never use this path.
func (s *Service) GetAccountDetails(ctx context.Context, accountID uuid.UUID) (*domain.AccountDetails, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	balance, err := s.balanceFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &domain.AccountDetails{Account: *account, Balance: balance}, nil
}

// ListAccounts returns accounts matching the filter options.
func (s *Service) ListAccounts(ctx context.Context, opts domain.AccountListOptions) ([]domain.Account, error) {
	if opts.Currency != "" && !currencyPattern.MatchString(opts.Currency) {
		return nil, ErrInvalidCurrency
	}
	return s.repo.ListAccounts(ctx, opts)
}

// DeleteAccount removes an account. Only accounts with zero committed balance and
// no pending payments can be deleted; the check runs under the account's lease.
func (s *Service) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return err
	}
	lease, err := s.locker.Acquire(ctx, accountID)
	if err != nil {
		return err
	}
	defer lease.Release()

	if err := s.deletableUnderLease(ctx, accountID); err != nil {
		return err
	}
	if err := s.repo.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	log.Printf("level=info component=app op=delete_account account_id=%s", accountID)
	return nil
}

// deletableUnderLease verifies an account can be removed: zero committed balance
// and no pending payment touching it in either direction. Caller holds the lease.
func (s *Service) deletableUnderLease(ctx context.Context, accountID uuid.UUID) error {
	history, err := s.repo.ListPaymentsForAccount(ctx, accountID, domain.PaymentListOptions{})
	if err != nil {
		return err
	}
	for _, payment := range history {
		if payment.Status == domain.PaymentStatusPending {
			return ErrPendingPayments
		}
	}
	if balance := computeBalance(accountID, history); balance.Committed != 0 {
		return ErrBalanceNotZero
	}
	return nil
}

// ListPaymentsForAccount returns the payment history of an account. Listings are
// not linearized with in-flight writes; they take no lease.
func (s *Service) ListPaymentsForAccount(ctx context.Context, accountID uuid.UUID, opts domain.PaymentListOptions) ([]domain.Payment, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsForAccount(ctx, accountID, opts)
}

// GetPayment returns a payment by id.
func (s *Service) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	return s.repo.GetPayment(ctx, paymentID)
}

// AdmitPayment validates a payment spec and, if the debited account can cover the
// amount, creates the payment in Pending state. The funds check and the insert
// happen under one lease over every involved account, so the new reservation is
// visible to any later availableBalance computation before the lease is released.
func (s *Service) AdmitPayment(ctx context.Context, spec domain.PaymentSpec) (*domain.Payment, error) {
	if spec.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := validateShape(spec); err != nil {
		return nil, err
	}

	// Resolve the involved accounts and make sure there is exactly one currency
	// across the accounts and the payment itself. No conversion support for now.
	involved, err := s.involvedAccounts(ctx, spec.SourceAccountID, spec.DestinationAccountID)
	if err != nil {
		return nil, err
	}
	for _, account := range involved {
		if account.Currency != spec.Currency {
			return nil, ErrCurrencyMismatch
		}
	}

	if err := s.consumeAdmitBudget(ctx, spec); err != nil {
		return nil, err
	}

	// A repeated admit with the same client reference returns the payment the
	// first attempt created instead of double-reserving.
	if spec.ClientReference != nil {
		existing, err := s.repo.FindPaymentByClientReference(ctx, *spec.ClientReference)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrPaymentNotFound) {
			return nil, err
		}
	}

	accountIDs := make([]uuid.UUID, 0, 2)
	for _, account := range involved {
		accountIDs = append(accountIDs, account.ID)
	}
	lease, err := s.locker.Acquire(ctx, accountIDs...)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	if spec.SourceAccountID != nil {
		balance, err := s.balanceFor(ctx, *spec.SourceAccountID)
		if err != nil {
			return nil, err
		}
		if spec.Amount > balance.Available {
			log.Printf("level=warn component=app op=admit_payment outcome=reject reason=insufficient_funds account_id=%s available=%d amount=%d",
				*spec.SourceAccountID, balance.Available, spec.Amount)
			return nil, ErrInsufficientFunds
		}
	}

	payment := &domain.Payment{
		ID:                   uuid.New(),
		Kind:                 spec.Kind,
		Status:               domain.PaymentStatusPending,
		SourceAccountID:      spec.SourceAccountID,
		DestinationAccountID: spec.DestinationAccountID,
		Amount:               spec.Amount,
		Currency:             spec.Currency,
		ClientReference:      spec.ClientReference,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, store.ErrDuplicatePayment) && spec.ClientReference != nil {
			return s.repo.FindPaymentByClientReference(ctx, *spec.ClientReference)
		}
		return nil, err
	}

	log.Printf("level=info component=app op=admit_payment outcome=admitted payment_id=%s kind=%s amount=%d currency=%s",
		payment.ID, payment.Kind, payment.Amount, payment.Currency)
	s.publishPaymentEvent(ctx, "payment.admitted", payment)
	return payment, nil
}

// ConfirmPayment transitions a pending payment to Confirmed, applying its effect
// to the committed balances. Fails with ErrInvalidTransition unless the payment is
// still Pending under the lease.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	lease, err := s.locker.Acquire(ctx, paymentAccountIDs(payment)...)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	// Re-read under the lease: a concurrent confirm/cancel may have won the race.
	payment, err = s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !canTransition(payment.Status, domain.PaymentStatusConfirmed) {
		return nil, ErrInvalidTransition
	}

	// Defensive re-check: the admission reservation already accounts for this
	// payment, but verify the source's available balance stays non-negative with
	// the effect applied as confirmed before committing it.
	if payment.SourceAccountID != nil {
		if err := s.recheckConfirmation(ctx, payment); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	updated, err := s.repo.UpdatePaymentStatus(ctx, paymentID, domain.PaymentStatusConfirmed, &now)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=app op=confirm_payment payment_id=%s kind=%s amount=%d", updated.ID, updated.Kind, updated.Amount)
	s.publishPaymentEvent(ctx, "payment.confirmed", updated)
	return updated, nil
}

// CancelPayment transitions a pending payment to Cancelled, releasing its
// reservation. Subsequent available balance computations reflect the release
// immediately.
func (s *Service) CancelPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	lease, err := s.locker.Acquire(ctx, paymentAccountIDs(payment)...)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	payment, err = s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !canTransition(payment.Status, domain.PaymentStatusCancelled) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdatePaymentStatus(ctx, paymentID, domain.PaymentStatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=app op=cancel_payment payment_id=%s kind=%s amount=%d", updated.ID, updated.Kind, updated.Amount)
	s.publishPaymentEvent(ctx, "payment.cancelled", updated)
	return updated, nil
}

// recheckConfirmation simulates the payment's history entry as confirmed and
// verifies the source account's available balance stays non-negative. Caller
// holds the lease over the payment's accounts.
func (s *Service) recheckConfirmation(ctx context.Context, payment *domain.Payment) error {
	history, err := s.repo.ListPaymentsForAccount(ctx, *payment.SourceAccountID, domain.PaymentListOptions{})
	if err != nil {
		return err
	}
	simulated := make([]domain.Payment, len(history))
	copy(simulated, history)
	for i := range simulated {
		if simulated[i].ID == payment.ID {
			simulated[i].Status = domain.PaymentStatusConfirmed
		}
	}
	if balance := computeBalance(*payment.SourceAccountID, simulated); balance.Available < 0 {
		log.Printf("level=warn component=app op=confirm_payment outcome=reject reason=insufficient_funds payment_id=%s account_id=%s available=%d",
			payment.ID, *payment.SourceAccountID, balance.Available)
		return ErrInsufficientFunds
	}
	return nil
}

// balanceFor loads an account's payment history and folds it into balances.
func (s *Service) balanceFor(ctx context.Context, accountID uuid.UUID) (domain.AccountBalance, error) {
	history, err := s.repo.ListPaymentsForAccount(ctx, accountID, domain.PaymentListOptions{})
	if err != nil {
		return domain.AccountBalance{}, err
	}
	return computeBalance(accountID, history), nil
}

// involvedAccounts resolves the non-nil account references of a payment spec.
func (s *Service) involvedAccounts(ctx context.Context, refs ...*uuid.UUID) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, len(refs))
	for _, ref := range refs {
		if ref == nil {
			continue
		}
		account, err := s.repo.GetAccount(ctx, *ref)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

// validateShape checks the account references against the payment kind.
func validateShape(spec domain.PaymentSpec) error {
	switch spec.Kind {
	case domain.PaymentKindDeposit:
		if spec.SourceAccountID != nil || spec.DestinationAccountID == nil {
			return ErrAccountShape
		}
	case domain.PaymentKindWithdrawal:
		if spec.SourceAccountID == nil || spec.DestinationAccountID != nil {
			return ErrAccountShape
		}
	case domain.PaymentKindTransfer:
		if spec.SourceAccountID == nil || spec.DestinationAccountID == nil {
			return ErrAccountShape
		}
		if *spec.SourceAccountID == *spec.DestinationAccountID {
			return ErrSameAccountTransfer
		}
	default:
		return ErrInvalidPaymentKind
	}
	return nil
}

// paymentAccountIDs returns the account ids a payment touches.
func paymentAccountIDs(payment *domain.Payment) []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	if payment.SourceAccountID != nil {
		ids = append(ids, *payment.SourceAccountID)
	}
	if payment.DestinationAccountID != nil {
		ids = append(ids, *payment.DestinationAccountID)
	}
	return ids
}

// publishPaymentEvent emits a lifecycle event for downstream consumers. Publishing
// is best-effort: a broker failure is logged, never surfaced to the payment's caller.
func (s *Service) publishPaymentEvent(ctx context.Context, routingKey string, payment *domain.Payment) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.PaymentEvent{
		PaymentID:            payment.ID,
		Kind:                 string(payment.Kind),
		Status:               string(payment.Status),
		SourceAccountID:      payment.SourceAccountID,
		DestinationAccountID: payment.DestinationAccountID,
		Amount:               payment.Amount,
		Currency:             payment.Currency,
		OccurredAt:           time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=app msg=\"payment event publish failed\" routing_key=%s payment_id=%s err=%v", routingKey, payment.ID, err)
	}
}

// consumeAdmitBudget applies the per-account admission rate limit. The limiter is
// fail-open: a limiter infrastructure error is logged, not surfaced to the caller.
func (s *Service) consumeAdmitBudget(ctx context.Context, spec domain.PaymentSpec) error {
	if s.admitRateLimiter == nil || s.admitRateLimit <= 0 {
		return nil
	}
	subject := spec.DestinationAccountID
	if spec.SourceAccountID != nil {
		subject = spec.SourceAccountID
	}
	count, retryAfter, err := s.admitRateLimiter.ConsumeRateLimit(ctx, "payment_admit", subject.String(), s.admitRateLimit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=app op=admit_payment msg=\"rate limiter unavailable; allowing\" err=%v", err)
		return nil
	}
	if count > s.admitRateLimit {
		log.Printf("level=warn component=app op=admit_payment outcome=reject reason=rate_limited account_id=%s retry_after_s=%d", subject, retryAfter)
		return fmt.Errorf("%w: retry after %ds", ErrRateLimited, retryAfter)
	}
	return nil
}
