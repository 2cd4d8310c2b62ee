/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to owners, accounts, and payments.
 *
 * @notes
 * Expected schema (managed by the deployment's migration tooling, not this service):
 *
 *   owners   (id uuid PK, name text UNIQUE NOT NULL, created_at timestamptz NOT NULL)
 *   accounts (id uuid PK, owner_id uuid NOT NULL REFERENCES owners(id),
 *             currency char(3) NOT NULL, created_at timestamptz NOT NULL)
 *   payments (id uuid PK, kind text NOT NULL, status text NOT NULL,
 *             source_account_id uuid NULL, destination_account_id uuid NULL,
 *             amount bigint NOT NULL, currency char(3) NOT NULL,
 *             client_reference text NULL UNIQUE,
 *             created_at timestamptz NOT NULL, confirmed_at timestamptz NULL)
 *
 * Payments deliberately carry no foreign keys to accounts: the payment log is
 * append-only and must survive deletion of a zero-balance account.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/ledger-service/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// CreateOwner inserts a new owner record.
func (r *PostgresRepository) CreateOwner(ctx context.Context, owner *domain.Owner) error {
	query := `INSERT INTO owners (id, name, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, owner.ID, owner.Name, owner.CreatedAt)
	if pgErrorCode(err) == pgUniqueViolation {
		return ErrDuplicateOwner
	}
	return err
}

// GetOwner retrieves an owner by id.
func (r *PostgresRepository) GetOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Owner, error) {
	var owner domain.Owner
	query := `SELECT id, name, created_at FROM owners WHERE id = $1`
	err := r.db.QueryRow(ctx, query, ownerID).Scan(&owner.ID, &owner.Name, &owner.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}
	return &owner, nil
}

// ListOwners returns all owners ordered by name.
func (r *PostgresRepository) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM owners ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := []domain.Owner{}
	for rows.Next() {
		var owner domain.Owner
		if err := rows.Scan(&owner.ID, &owner.Name, &owner.CreatedAt); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// RenameOwner updates an owner's display name.
func (r *PostgresRepository) RenameOwner(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Owner, error) {
	var owner domain.Owner
	query := `UPDATE owners SET name = $2 WHERE id = $1 RETURNING id, name, created_at`
	err := r.db.QueryRow(ctx, query, ownerID, name).Scan(&owner.ID, &owner.Name, &owner.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		if pgErrorCode(err) == pgUniqueViolation {
			return nil, ErrDuplicateOwner
		}
		return nil, err
	}
	return &owner, nil
}

// DeleteOwner removes an owner. The accounts.owner_id foreign key turns an attempt
// to delete an owner with remaining accounts into ErrOwnerHasAccounts.
func (r *PostgresRepository) DeleteOwner(ctx context.Context, ownerID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM owners WHERE id = $1`, ownerID)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return ErrOwnerHasAccounts
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOwnerNotFound
	}
	return nil
}

// CreateAccount inserts a new account record.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `INSERT INTO accounts (id, owner_id, currency, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, account.ID, account.OwnerID, account.Currency, account.CreatedAt)
	if pgErrorCode(err) == pgForeignKeyViolation {
		return ErrOwnerNotFound
	}
	return err
}

// GetAccount retrieves an account by id.
func (r *PostgresRepository) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, owner_id, currency, created_at FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(&account.ID, &account.OwnerID, &account.Currency, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListAccounts returns accounts matching the filter options, oldest first.
func (r *PostgresRepository) ListAccounts(ctx context.Context, opts domain.AccountListOptions) ([]domain.Account, error) {
	query := `SELECT id, owner_id, currency, created_at FROM accounts`
	conditions := ""
	args := []interface{}{}
	if opts.OwnerID != nil {
		args = append(args, *opts.OwnerID)
		conditions = fmt.Sprintf(" WHERE owner_id = $%d", len(args))
	}
	if opts.Currency != "" {
		args = append(args, opts.Currency)
		if conditions == "" {
			conditions = fmt.Sprintf(" WHERE currency = $%d", len(args))
		} else {
			conditions += fmt.Sprintf(" AND currency = $%d", len(args))
		}
	}
	rows, err := r.db.Query(ctx, query+conditions+" ORDER BY created_at", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(&account.ID, &account.OwnerID, &account.Currency, &account.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// DeleteAccount removes an account record. The payment history referencing it is
// kept; the caller has already verified the balance is zero.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// CreatePayment inserts a new payment record.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments
			(id, kind, status, source_account_id, destination_account_id, amount, currency, client_reference, created_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.Kind,
		payment.Status,
		payment.SourceAccountID,
		payment.DestinationAccountID,
		payment.Amount,
		payment.Currency,
		payment.ClientReference,
		payment.CreatedAt,
		payment.ConfirmedAt,
	)
	if pgErrorCode(err) == pgUniqueViolation {
		return ErrDuplicatePayment
	}
	return err
}

func scanPayment(row pgx.Row, payment *domain.Payment) error {
	return row.Scan(
		&payment.ID,
		&payment.Kind,
		&payment.Status,
		&payment.SourceAccountID,
		&payment.DestinationAccountID,
		&payment.Amount,
		&payment.Currency,
		&payment.ClientReference,
		&payment.CreatedAt,
		&payment.ConfirmedAt,
	)
}

const paymentColumns = `id, kind, status, source_account_id, destination_account_id, amount, currency, client_reference, created_at, confirmed_at`

// GetPayment retrieves a payment by id.
func (r *PostgresRepository) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	var payment domain.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	err := scanPayment(r.db.QueryRow(ctx, query, paymentID), &payment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// FindPaymentByClientReference retrieves a payment by its client-supplied reference.
func (r *PostgresRepository) FindPaymentByClientReference(ctx context.Context, clientReference string) (*domain.Payment, error) {
	var payment domain.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE client_reference = $1`
	err := scanPayment(r.db.QueryRow(ctx, query, clientReference), &payment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// UpdatePaymentStatus writes a payment's new status and confirmation timestamp.
// Transition validity is the state machine's responsibility, not this layer's.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status domain.PaymentStatus, confirmedAt *time.Time) (*domain.Payment, error) {
	var payment domain.Payment
	query := `
		UPDATE payments SET status = $2, confirmed_at = $3
		WHERE id = $1
		RETURNING ` + paymentColumns
	err := scanPayment(r.db.QueryRow(ctx, query, paymentID, status, confirmedAt), &payment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// ListPaymentsForAccount returns the payments touching an account, oldest first.
func (r *PostgresRepository) ListPaymentsForAccount(ctx context.Context, accountID uuid.UUID, opts domain.PaymentListOptions) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE (source_account_id = $1 OR destination_account_id = $1)`
	args := []interface{}{accountID}
	if opts.Status != "" {
		args = append(args, opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		var payment domain.Payment
		if err := scanPayment(rows, &payment); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}
