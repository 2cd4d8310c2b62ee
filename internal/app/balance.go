/**
 * @description
 * This file implements the balance engine: a pure fold over an account's payment
 * history that derives the committed and available balances. It performs no writes
 * and no I/O; callers that feed the result into an admission decision must compute
 * it while holding the account's lease.
 *
 * @notes
 * - Committed balance sums confirmed payment effects only: credits where the
 *   account is the destination, debits where it is the source.
 * - Available balance subtracts pending debits (reservations) from the committed
 *   balance. Pending credits are ignored until confirmed: available balance is
 *   pessimistic about incoming money and strict about reservations already made,
 *   so concurrent withdrawals cannot jointly overdraw.
 */

package app

import (
	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

// computeBalance derives the balance figures for an account from its payment
// history. Payments not touching the account are skipped, so callers can pass any
// superset of the account's history.
func computeBalance(accountID uuid.UUID, history []domain.Payment) domain.AccountBalance {
	var committed, pendingDebits int64
	for _, payment := range history {
		credits := payment.DestinationAccountID != nil && *payment.DestinationAccountID == accountID
		debits := payment.SourceAccountID != nil && *payment.SourceAccountID == accountID

		switch payment.Status {
		case domain.PaymentStatusConfirmed:
			if credits {
				committed += payment.Amount
			}
			if debits {
				committed -= payment.Amount
			}
		case domain.PaymentStatusPending:
			if debits {
				pendingDebits += payment.Amount
			}
		}
	}
	return domain.AccountBalance{
		Committed:     committed,
		PendingDebits: pendingDebits,
		Available:     committed - pendingDebits,
	}
}
