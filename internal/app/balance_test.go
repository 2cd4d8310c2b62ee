package app

import (
	"testing"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

func paymentFor(kind domain.PaymentKind, status domain.PaymentStatus, amount int64, source, destination *uuid.UUID) domain.Payment {
	return domain.Payment{
		ID:                   uuid.New(),
		Kind:                 kind,
		Status:               status,
		SourceAccountID:      source,
		DestinationAccountID: destination,
		Amount:               amount,
		Currency:             "USD",
	}
}

func TestComputeBalance_EmptyHistoryIsZero(t *testing.T) {
	balance := computeBalance(uuid.New(), nil)
	if balance.Committed != 0 || balance.Available != 0 || balance.PendingDebits != 0 {
		t.Fatalf("expected zero balance, got %+v", balance)
	}
}

func TestComputeBalance_ConfirmedEffects(t *testing.T) {
	account := uuid.New()
	other := uuid.New()
	history := []domain.Payment{
		paymentFor(domain.PaymentKindDeposit, domain.PaymentStatusConfirmed, 1000, nil, &account),
		paymentFor(domain.PaymentKindWithdrawal, domain.PaymentStatusConfirmed, 300, &account, nil),
		paymentFor(domain.PaymentKindTransfer, domain.PaymentStatusConfirmed, 200, &account, &other),
		paymentFor(domain.PaymentKindTransfer, domain.PaymentStatusConfirmed, 50, &other, &account),
	}

	balance := computeBalance(account, history)
	if balance.Committed != 550 {
		t.Fatalf("expected committed 550, got %d", balance.Committed)
	}
	if balance.Available != 550 {
		t.Fatalf("expected available 550, got %d", balance.Available)
	}
}

func TestComputeBalance_PendingDebitsReserve(t *testing.T) {
	account := uuid.New()
	other := uuid.New()
	history := []domain.Payment{
		paymentFor(domain.PaymentKindDeposit, domain.PaymentStatusConfirmed, 1000, nil, &account),
		paymentFor(domain.PaymentKindWithdrawal, domain.PaymentStatusPending, 400, &account, nil),
		paymentFor(domain.PaymentKindTransfer, domain.PaymentStatusPending, 100, &account, &other),
	}

	balance := computeBalance(account, history)
	if balance.Committed != 1000 {
		t.Fatalf("expected committed 1000, got %d", balance.Committed)
	}
	if balance.PendingDebits != 500 {
		t.Fatalf("expected pending debits 500, got %d", balance.PendingDebits)
	}
	if balance.Available != 500 {
		t.Fatalf("expected available 500, got %d", balance.Available)
	}
}

func TestComputeBalance_PendingCreditsDoNotRaiseAvailable(t *testing.T) {
	account := uuid.New()
	other := uuid.New()
	history := []domain.Payment{
		paymentFor(domain.PaymentKindDeposit, domain.PaymentStatusPending, 1000, nil, &account),
		paymentFor(domain.PaymentKindTransfer, domain.PaymentStatusPending, 250, &other, &account),
	}

	balance := computeBalance(account, history)
	if balance.Committed != 0 || balance.Available != 0 {
		t.Fatalf("pending credits must not count, got %+v", balance)
	}
}

func TestComputeBalance_CancelledPaymentsIgnored(t *testing.T) {
	account := uuid.New()
	history := []domain.Payment{
		paymentFor(domain.PaymentKindDeposit, domain.PaymentStatusConfirmed, 100, nil, &account),
		paymentFor(domain.PaymentKindWithdrawal, domain.PaymentStatusCancelled, 80, &account, nil),
		paymentFor(domain.PaymentKindDeposit, domain.PaymentStatusCancelled, 500, nil, &account),
	}

	balance := computeBalance(account, history)
	if balance.Committed != 100 || balance.Available != 100 {
		t.Fatalf("cancelled payments must have no effect, got %+v", balance)
	}
}

func TestComputeBalance_SkipsUnrelatedPayments(t *testing.T) {
	account := uuid.New()
	a := uuid.New()
	b := uuid.New()
	history := []domain.Payment{
		paymentFor(domain.PaymentKindTransfer, domain.PaymentStatusConfirmed, 700, &a, &b),
	}

	balance := computeBalance(account, history)
	if balance.Committed != 0 || balance.Available != 0 {
		t.Fatalf("unrelated payments must have no effect, got %+v", balance)
	}
}
