package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

func seedOwner(t *testing.T, repo *MemoryRepository, name string) domain.Owner {
	t.Helper()
	owner := domain.Owner{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	if err := repo.CreateOwner(context.Background(), &owner); err != nil {
		t.Fatalf("seed owner %q: %v", name, err)
	}
	return owner
}

func seedAccount(t *testing.T, repo *MemoryRepository, ownerID uuid.UUID, currency string, createdAt time.Time) domain.Account {
	t.Helper()
	account := domain.Account{ID: uuid.New(), OwnerID: ownerID, Currency: currency, CreatedAt: createdAt}
	if err := repo.CreateAccount(context.Background(), &account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}

func seedPayment(t *testing.T, repo *MemoryRepository, payment domain.Payment) domain.Payment {
	t.Helper()
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if err := repo.CreatePayment(context.Background(), &payment); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return payment
}

func TestOwnerLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	owner := seedOwner(t, repo, "alice")

	got, err := repo.GetOwner(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	if got.Name != "alice" {
		t.Fatalf("expected name alice, got %q", got.Name)
	}

	if err := repo.CreateOwner(context.Background(), &domain.Owner{ID: uuid.New(), Name: "alice"}); !errors.Is(err, ErrDuplicateOwner) {
		t.Fatalf("expected ErrDuplicateOwner, got %v", err)
	}

	if err := repo.DeleteOwner(context.Background(), owner.ID); err != nil {
		t.Fatalf("delete owner: %v", err)
	}
	if _, err := repo.GetOwner(context.Background(), owner.ID); !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}

	// The name is free for reuse after deletion.
	seedOwner(t, repo, "alice")
}

func TestListOwners_SortedByName(t *testing.T) {
	repo := NewMemoryRepository()
	seedOwner(t, repo, "charlie")
	seedOwner(t, repo, "alice")
	seedOwner(t, repo, "bob")

	owners, err := repo.ListOwners(context.Background())
	if err != nil {
		t.Fatalf("list owners: %v", err)
	}
	if len(owners) != 3 {
		t.Fatalf("expected 3 owners, got %d", len(owners))
	}
	for i, want := range []string{"alice", "bob", "charlie"} {
		if owners[i].Name != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, owners[i].Name)
		}
	}
}

func TestRenameOwner_NameBookkeeping(t *testing.T) {
	repo := NewMemoryRepository()
	owner := seedOwner(t, repo, "before")
	other := seedOwner(t, repo, "taken")

	if _, err := repo.RenameOwner(context.Background(), owner.ID, "taken"); !errors.Is(err, ErrDuplicateOwner) {
		t.Fatalf("rename onto taken name: expected ErrDuplicateOwner, got %v", err)
	}

	// Renaming to the current name is a no-op, not a collision.
	if _, err := repo.RenameOwner(context.Background(), other.ID, "taken"); err != nil {
		t.Fatalf("self-rename: %v", err)
	}

	renamed, err := repo.RenameOwner(context.Background(), owner.ID, "after")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "after" {
		t.Fatalf("expected after, got %q", renamed.Name)
	}

	// The old name is released.
	seedOwner(t, repo, "before")

	if _, err := repo.RenameOwner(context.Background(), uuid.New(), "ghost"); !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
}

func TestDeleteOwner_RefusedWhileAccountsExist(t *testing.T) {
	repo := NewMemoryRepository()
	owner := seedOwner(t, repo, "holder")
	account := seedAccount(t, repo, owner.ID, "USD", time.Now().UTC())

	if err := repo.DeleteOwner(context.Background(), owner.ID); !errors.Is(err, ErrOwnerHasAccounts) {
		t.Fatalf("expected ErrOwnerHasAccounts, got %v", err)
	}

	if err := repo.DeleteAccount(context.Background(), account.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if err := repo.DeleteOwner(context.Background(), owner.ID); err != nil {
		t.Fatalf("delete owner after account removal: %v", err)
	}
}

func TestCreateAccount_RequiresOwner(t *testing.T) {
	repo := NewMemoryRepository()
	account := domain.Account{ID: uuid.New(), OwnerID: uuid.New(), Currency: "USD", CreatedAt: time.Now().UTC()}
	if err := repo.CreateAccount(context.Background(), &account); !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
}

func TestListAccounts_FiltersAndOrder(t *testing.T) {
	repo := NewMemoryRepository()
	owner := seedOwner(t, repo, "holder")
	stranger := seedOwner(t, repo, "stranger")

	base := time.Now().UTC()
	older := seedAccount(t, repo, owner.ID, "USD", base.Add(-time.Hour))
	newer := seedAccount(t, repo, owner.ID, "EUR", base)
	seedAccount(t, repo, stranger.ID, "USD", base)

	mine, err := repo.ListAccounts(context.Background(), domain.AccountListOptions{OwnerID: &owner.ID})
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(mine))
	}
	if mine[0].ID != older.ID || mine[1].ID != newer.ID {
		t.Fatalf("expected oldest-first order, got %v then %v", mine[0].ID, mine[1].ID)
	}

	usd, err := repo.ListAccounts(context.Background(), domain.AccountListOptions{Currency: "USD"})
	if err != nil {
		t.Fatalf("list by currency: %v", err)
	}
	if len(usd) != 2 {
		t.Fatalf("expected 2 USD accounts, got %d", len(usd))
	}
}

func TestPaymentLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	accountID := uuid.New()
	payment := seedPayment(t, repo, domain.Payment{
		Kind:                 domain.PaymentKindDeposit,
		Status:               domain.PaymentStatusPending,
		DestinationAccountID: &accountID,
		Amount:               100,
		Currency:             "USD",
		CreatedAt:            time.Now().UTC(),
	})

	got, err := repo.GetPayment(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if got.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}

	now := time.Now().UTC()
	updated, err := repo.UpdatePaymentStatus(context.Background(), payment.ID, domain.PaymentStatusConfirmed, &now)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.PaymentStatusConfirmed || updated.ConfirmedAt == nil {
		t.Fatalf("expected confirmed with timestamp, got %+v", updated)
	}

	if _, err := repo.UpdatePaymentStatus(context.Background(), uuid.New(), domain.PaymentStatusCancelled, nil); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestCreatePayment_DuplicateClientReference(t *testing.T) {
	repo := NewMemoryRepository()
	accountID := uuid.New()
	ref := "inv-42"
	first := seedPayment(t, repo, domain.Payment{
		Kind:                 domain.PaymentKindDeposit,
		Status:               domain.PaymentStatusPending,
		DestinationAccountID: &accountID,
		Amount:               10,
		Currency:             "USD",
		ClientReference:      &ref,
	})

	dup := domain.Payment{
		ID:                   uuid.New(),
		Kind:                 domain.PaymentKindDeposit,
		Status:               domain.PaymentStatusPending,
		DestinationAccountID: &accountID,
		Amount:               10,
		Currency:             "USD",
		ClientReference:      &ref,
	}
	if err := repo.CreatePayment(context.Background(), &dup); !errors.Is(err, ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment, got %v", err)
	}

	found, err := repo.FindPaymentByClientReference(context.Background(), ref)
	if err != nil {
		t.Fatalf("find by reference: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("expected first payment %s, got %s", first.ID, found.ID)
	}

	if _, err := repo.FindPaymentByClientReference(context.Background(), "missing"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestListPaymentsForAccount_OrderFilterPagination(t *testing.T) {
	repo := NewMemoryRepository()
	accountID := uuid.New()
	otherID := uuid.New()

	p1 := seedPayment(t, repo, domain.Payment{Kind: domain.PaymentKindDeposit, Status: domain.PaymentStatusConfirmed, DestinationAccountID: &accountID, Amount: 1, Currency: "USD"})
	seedPayment(t, repo, domain.Payment{Kind: domain.PaymentKindDeposit, Status: domain.PaymentStatusConfirmed, DestinationAccountID: &otherID, Amount: 2, Currency: "USD"})
	p3 := seedPayment(t, repo, domain.Payment{Kind: domain.PaymentKindWithdrawal, Status: domain.PaymentStatusPending, SourceAccountID: &accountID, Amount: 3, Currency: "USD"})
	p4 := seedPayment(t, repo, domain.Payment{Kind: domain.PaymentKindTransfer, Status: domain.PaymentStatusPending, SourceAccountID: &otherID, DestinationAccountID: &accountID, Amount: 4, Currency: "USD"})

	all, err := repo.ListPaymentsForAccount(context.Background(), accountID, domain.PaymentListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(all))
	}
	if all[0].ID != p1.ID || all[1].ID != p3.ID || all[2].ID != p4.ID {
		t.Fatal("expected insertion order")
	}

	pending, err := repo.ListPaymentsForAccount(context.Background(), accountID, domain.PaymentListOptions{Status: domain.PaymentStatusPending})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	page, err := repo.ListPaymentsForAccount(context.Background(), accountID, domain.PaymentListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != p3.ID {
		t.Fatalf("expected single-item page holding the second payment, got %+v", page)
	}

	// Offset past the end yields an empty slice, not an error.
	empty, err := repo.ListPaymentsForAccount(context.Background(), accountID, domain.PaymentListOptions{Offset: 10})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty result, got %d", len(empty))
	}
}

func TestReturnsAreCopies(t *testing.T) {
	repo := NewMemoryRepository()
	owner := seedOwner(t, repo, "copy-check")

	got, err := repo.GetOwner(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	got.Name = "mutated"

	again, err := repo.GetOwner(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("get owner again: %v", err)
	}
	if again.Name != "copy-check" {
		t.Fatalf("stored record was mutated through a returned pointer: %q", again.Name)
	}
}
