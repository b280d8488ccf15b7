package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kendall-kelly/motorhub-api/models"
)

func newTestPaymentService(t *testing.T) (*PaymentService, *MockAttachmentService, *mockNotifier) {
	attachments := NewMockAttachmentService()
	notifier := newAcceptingNotifier()
	return NewPaymentService(setupTestDB(t), nil, attachments, notifier), attachments, notifier
}

func createOrderReference(t *testing.T, svc *PaymentService, payer models.User, total string) models.PartOrder {
	order := models.PartOrder{BuyerID: payer.ID, Total: dec(total), Status: models.OrderPending}
	require.NoError(t, svc.db.Create(&order).Error)
	return order
}

func TestCreateTransaction_Success(t *testing.T) {
	svc, _, notifier := newTestPaymentService(t)
	ctx := context.Background()

	payer := createUser(t, svc.db, models.RoleCustomer)
	order := createOrderReference(t, svc, payer, "30.00")

	txn, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		PayerID:       payer.ID,
		ReferenceType: "part_order",
		ReferenceID:   order.ID,
		Amount:        dec("30.00"),
		PaymentMethod: models.MethodCard,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionPending, txn.Status)
	assert.Equal(t, models.DefaultCurrency, txn.Currency)
	assert.Equal(t, models.ReferencePartOrder, txn.ReferenceType)
	assert.True(t, strings.HasPrefix(txn.ReceiptNumber, "RCPT-"))
	require.NotNil(t, txn.Payer)
	assert.Equal(t, payer.Email, txn.Payer.Email)

	assert.Equal(t, models.PaymentPending, paymentStatusOf(t, svc.db, models.PartOrderRef{ID: order.ID}))
	waitForNotifications(t)
	notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(n Notification) bool {
		return n.Template == TemplatePaymentRecorded && n.Data["receipt_number"] == txn.ReceiptNumber
	}))
}

func TestCreateTransaction_EveryReferenceType(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	payer := createUser(t, svc.db, models.RoleCustomer)
	refs := seedReferences(t, svc.db)
	totals := []string{"120.00", "80.00", "30.00"}

	for i, ref := range refs {
		t.Run(string(ref.Type()), func(t *testing.T) {
			txn, err := svc.CreateTransaction(ctx, CreateTransactionInput{
				PayerID:       payer.ID,
				ReferenceType: string(ref.Type()),
				ReferenceID:   ref.RefID(),
				Amount:        dec(totals[i]),
				PaymentMethod: models.MethodUPI,
				Currency:      "inr",
			})
			require.NoError(t, err)
			assert.Equal(t, "INR", txn.Currency)
			assert.Equal(t, models.PaymentPending, paymentStatusOf(t, svc.db, ref))
		})
	}
}

// An order totalling 30.00 paid with 30.01 is rejected and nothing is stored.
func TestCreateTransaction_AmountMismatch(t *testing.T) {
	svc, attachments, _ := newTestPaymentService(t)
	ctx := context.Background()

	payer := createUser(t, svc.db, models.RoleCustomer)
	order := createOrderReference(t, svc, payer, "30.00")

	_, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		PayerID:       payer.ID,
		ReferenceType: "part_order",
		ReferenceID:   order.ID,
		Amount:        dec("30.01"),
		PaymentMethod: models.MethodCard,
		Receipt:       createFileHeader(t, "receipt.pdf", []byte("%PDF")),
	})
	assert.ErrorIs(t, err, ErrAmountMismatch)

	var count int64
	svc.db.Model(&models.PaymentTransaction{}).Count(&count)
	assert.Zero(t, count)
	assert.Equal(t, models.PaymentUnpaid, paymentStatusOf(t, svc.db, models.PartOrderRef{ID: order.ID}))
	assert.Empty(t, attachments.Files(), "receipt should be discarded")
}

func TestCreateTransaction_Validation(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	payer := createUser(t, svc.db, models.RoleCustomer)
	order := createOrderReference(t, svc, payer, "30.00")

	valid := CreateTransactionInput{
		PayerID:       payer.ID,
		ReferenceType: "part_order",
		ReferenceID:   order.ID,
		Amount:        dec("30.00"),
		PaymentMethod: models.MethodCash,
	}

	tests := []struct {
		name    string
		mutate  func(in *CreateTransactionInput)
		wantErr error
	}{
		{"unknown reference type", func(in *CreateTransactionInput) { in.ReferenceType = "invoice" }, ErrInvalidArgument},
		{"missing reference id", func(in *CreateTransactionInput) { in.ReferenceID = uuid.Nil }, ErrInvalidArgument},
		{"negative amount", func(in *CreateTransactionInput) { in.Amount = dec("-1") }, ErrInvalidArgument},
		{"unknown method", func(in *CreateTransactionInput) { in.PaymentMethod = "cheque" }, ErrInvalidArgument},
		{"bad currency", func(in *CreateTransactionInput) { in.Currency = "dollars" }, ErrInvalidArgument},
		{"missing reference", func(in *CreateTransactionInput) { in.ReferenceID = uuid.New() }, ErrNotFound},
		{"unknown payer", func(in *CreateTransactionInput) { in.PayerID = uuid.New() }, ErrNotFound},
		{"rejected receipt", func(in *CreateTransactionInput) { in.Receipt = createFileHeader(t, "receipt.exe", []byte("MZ")) }, ErrAttachmentRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := svc.CreateTransaction(ctx, in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateTransaction_DuplicateReference(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	payer := createUser(t, svc.db, models.RoleCustomer)
	order := createOrderReference(t, svc, payer, "12.50")
	in := CreateTransactionInput{
		PayerID:       payer.ID,
		ReferenceType: "part_order",
		ReferenceID:   order.ID,
		Amount:        dec("12.50"),
		PaymentMethod: models.MethodWallet,
	}

	_, err := svc.CreateTransaction(ctx, in)
	require.NoError(t, err)

	_, err = svc.CreateTransaction(ctx, in)
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
}

func TestCreateTransaction_Receipt(t *testing.T) {
	svc, attachments, _ := newTestPaymentService(t)
	ctx := context.Background()

	payer := createUser(t, svc.db, models.RoleCustomer)
	order := createOrderReference(t, svc, payer, "5.00")

	txn, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		PayerID:       payer.ID,
		ReferenceType: "part_order",
		ReferenceID:   order.ID,
		Amount:        dec("5"),
		PaymentMethod: models.MethodBankTransfer,
		Receipt:       createFileHeader(t, "receipt.png", []byte("png")),
	})
	require.NoError(t, err)
	require.NotNil(t, txn.ReceiptKey)
	require.NotNil(t, txn.ReceiptFilename)
	require.NotNil(t, txn.ReceiptURL)
	assert.Equal(t, "receipt.png", *txn.ReceiptFilename)
	assert.True(t, attachments.Exists(*txn.ReceiptKey))
	assert.Contains(t, *txn.ReceiptURL, *txn.ReceiptKey)
}

func TestUpdateTransactionStatus(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	payer := createUser(t, svc.db, models.RoleCustomer)
	order := createOrderReference(t, svc, payer, "30.00")
	ref := models.PartOrderRef{ID: order.ID}

	txn, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		PayerID:       payer.ID,
		ReferenceType: "part_order",
		ReferenceID:   order.ID,
		Amount:        dec("30.00"),
		PaymentMethod: models.MethodCard,
	})
	require.NoError(t, err)

	completed, err := svc.UpdateTransactionStatus(ctx, UpdateTransactionStatusInput{
		TransactionID: txn.ID,
		Status:        models.TransactionCompleted,
		Remarks:       strPtr("settled"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, completed.Status)
	assert.Equal(t, models.PaymentCompleted, paymentStatusOf(t, svc.db, ref))

	_, err = svc.UpdateTransactionStatus(ctx, UpdateTransactionStatusInput{TransactionID: txn.ID, Status: models.TransactionPending})
	assert.ErrorIs(t, err, ErrTransactionFinalized)

	reloaded, err := svc.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, reloaded.Status)
	assert.Equal(t, models.PaymentCompleted, paymentStatusOf(t, svc.db, ref))

	refunded, err := svc.UpdateTransactionStatus(ctx, UpdateTransactionStatusInput{TransactionID: txn.ID, Status: models.TransactionRefunded})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionRefunded, refunded.Status)
	assert.Equal(t, models.PaymentFailed, paymentStatusOf(t, svc.db, ref))
}

func TestUpdateTransactionStatus_FailedThenRetried(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	payer := createUser(t, svc.db, models.RoleCustomer)
	order := createOrderReference(t, svc, payer, "8.00")
	ref := models.PartOrderRef{ID: order.ID}
	txn, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		PayerID: payer.ID, ReferenceType: "part_order", ReferenceID: order.ID,
		Amount: dec("8.00"), PaymentMethod: models.MethodCard,
	})
	require.NoError(t, err)

	_, err = svc.UpdateTransactionStatus(ctx, UpdateTransactionStatusInput{TransactionID: txn.ID, Status: models.TransactionFailed})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, paymentStatusOf(t, svc.db, ref))

	_, err = svc.UpdateTransactionStatus(ctx, UpdateTransactionStatusInput{TransactionID: txn.ID, Status: models.TransactionCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, paymentStatusOf(t, svc.db, ref))
}

func TestUpdateTransactionStatus_MissingReferenceStillUpdates(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	payer := createUser(t, svc.db, models.RoleCustomer)
	order := createOrderReference(t, svc, payer, "8.00")
	txn, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		PayerID: payer.ID, ReferenceType: "part_order", ReferenceID: order.ID,
		Amount: dec("8.00"), PaymentMethod: models.MethodCard,
	})
	require.NoError(t, err)

	require.NoError(t, svc.db.Delete(&models.PartOrder{}, "id = ?", order.ID).Error)

	updated, err := svc.UpdateTransactionStatus(ctx, UpdateTransactionStatusInput{TransactionID: txn.ID, Status: models.TransactionCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, updated.Status)
}

func TestUpdateTransactionStatus_Errors(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	_, err := svc.UpdateTransactionStatus(ctx, UpdateTransactionStatusInput{TransactionID: uuid.New(), Status: models.TransactionCompleted})
	assert.ErrorIs(t, err, ErrNotFound)

	payer := createUser(t, svc.db, models.RoleCustomer)
	order := createOrderReference(t, svc, payer, "1.00")
	txn, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		PayerID: payer.ID, ReferenceType: "part_order", ReferenceID: order.ID,
		Amount: dec("1.00"), PaymentMethod: models.MethodCard,
	})
	require.NoError(t, err)

	_, err = svc.UpdateTransactionStatus(ctx, UpdateTransactionStatusInput{TransactionID: txn.ID, Status: "void"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestListTransactions(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	alice := createUser(t, svc.db, models.RoleCustomer)
	bob := createUser(t, svc.db, models.RoleCustomer)
	for _, payer := range []models.User{alice, bob, bob} {
		order := createOrderReference(t, svc, payer, "2.00")
		_, err := svc.CreateTransaction(ctx, CreateTransactionInput{
			PayerID: payer.ID, ReferenceType: "part_order", ReferenceID: order.ID,
			Amount: dec("2.00"), PaymentMethod: models.MethodCard,
		})
		require.NoError(t, err)
	}

	txns, total, err := svc.ListTransactions(ctx, TransactionFilter{PayerID: &bob.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, txns, 2)

	_, total, err = svc.ListTransactions(ctx, TransactionFilter{ReferenceType: models.ReferenceRentalBooking})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = svc.ListTransactions(ctx, TransactionFilter{ReferenceType: "invoice"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewReceiptNumberIsRandom(t *testing.T) {
	a, err := NewReceiptNumber()
	require.NoError(t, err)
	b, err := NewReceiptNumber()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToUpper(a), a)
}
