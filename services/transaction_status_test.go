package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendall-kelly/motorhub-api/models"
)

func TestNextTransactionStatus(t *testing.T) {
	all := []models.TransactionStatus{
		models.TransactionPending,
		models.TransactionCompleted,
		models.TransactionFailed,
		models.TransactionRefunded,
	}

	for _, current := range all {
		for _, requested := range all {
			t.Run(string(current)+"->"+string(requested), func(t *testing.T) {
				next, err := NextTransactionStatus(current, requested)
				if current == models.TransactionCompleted && requested != models.TransactionRefunded {
					assert.ErrorIs(t, err, ErrTransactionFinalized)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, requested, next)
			})
		}
	}

	_, err := NextTransactionStatus(models.TransactionPending, "void")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPaymentStatusFor(t *testing.T) {
	assert.Equal(t, models.PaymentCompleted, PaymentStatusFor(models.TransactionCompleted))
	assert.Equal(t, models.PaymentFailed, PaymentStatusFor(models.TransactionFailed))
	assert.Equal(t, models.PaymentFailed, PaymentStatusFor(models.TransactionPending))
	// refunds also map to payment_failed
	assert.Equal(t, models.PaymentFailed, PaymentStatusFor(models.TransactionRefunded))
}
