package services

import "github.com/kendall-kelly/motorhub-api/models"

// NextTransactionStatus decides whether a transaction may move from
// current to requested. Completed transactions can only be refunded.
func NextTransactionStatus(current, requested models.TransactionStatus) (models.TransactionStatus, error) {
	if !requested.Valid() {
		return "", invalidArgument("INVALID_STATUS", "unknown transaction status %q", requested)
	}
	if current == models.TransactionCompleted && requested != models.TransactionRefunded {
		return "", illegalTransition(ErrTransactionFinalized.Code,
			"completed transactions can only be refunded")
	}
	return requested, nil
}

// PaymentStatusFor maps an updated transaction status to the payment
// status mirrored onto the referenced entity. Every status other than
// completed, refunded included, maps to payment_failed.
func PaymentStatusFor(status models.TransactionStatus) models.PaymentStatus {
	if status == models.TransactionCompleted {
		return models.PaymentCompleted
	}
	return models.PaymentFailed
}
