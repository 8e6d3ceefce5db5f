package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/harvestfield/api/internal/domain"
	pfirestore "github.com/harvestfield/api/internal/platform/firestore"
	"github.com/harvestfield/api/internal/repositories"
)

const paymentSubcollection = "payments"

// OrderPaymentRepository stores settled gateway attempts as a subcollection
// underneath the owning order document.
type OrderPaymentRepository struct {
	provider *pfirestore.Provider
}

// NewOrderPaymentRepository constructs a Firestore-backed payment record repository.
func NewOrderPaymentRepository(provider *pfirestore.Provider) (*OrderPaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	return &OrderPaymentRepository{provider: provider}, nil
}

var _ repositories.OrderPaymentRepository = (*OrderPaymentRepository)(nil)

// Insert appends a payment record under the order, failing on duplicate IDs.
func (r *OrderPaymentRepository) Insert(ctx context.Context, record domain.PaymentRecord) error {
	if r == nil || r.provider == nil {
		return errors.New("payment repository not initialised")
	}
	orderID := strings.TrimSpace(record.OrderID)
	if orderID == "" {
		return errors.New("payment repository: order id is required")
	}
	recordID := strings.TrimSpace(record.ID)
	if recordID == "" {
		return errors.New("payment repository: record id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	ref := client.Collection(orderCollection).Doc(orderID).Collection(paymentSubcollection).Doc(recordID)
	if _, err := ref.Create(ctx, encodePaymentRecord(record)); err != nil {
		return pfirestore.WrapError("payments.insert", err)
	}
	return nil
}

// List returns payment records for the order in chronological order.
func (r *OrderPaymentRepository) List(ctx context.Context, orderID string) ([]domain.PaymentRecord, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("payment repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("payment repository: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	query := client.Collection(orderCollection).Doc(orderID).Collection(paymentSubcollection).
		OrderBy("createdAt", firestore.Asc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var records []domain.PaymentRecord
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("payments.list", err)
		}
		var doc paymentRecordDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("payment repository: decode %s: %w", snapshot.Ref.ID, err)
		}
		record, err := decodePaymentRecord(snapshot.Ref.ID, orderID, doc)
		if err != nil {
			return nil, fmt.Errorf("payment repository: decode %s: %w", snapshot.Ref.ID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

type paymentRecordDocument struct {
	Method        string    `firestore:"method"`
	Status        string    `firestore:"status"`
	Amount        string    `firestore:"amount"`
	TransactionID string    `firestore:"transactionId,omitempty"`
	Message       string    `firestore:"message,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

func encodePaymentRecord(record domain.PaymentRecord) paymentRecordDocument {
	return paymentRecordDocument{
		Method:        string(record.Method),
		Status:        string(record.Status),
		Amount:        record.Amount.String(),
		TransactionID: record.TransactionID,
		Message:       record.Message,
		CreatedAt:     record.CreatedAt.UTC(),
	}
}

func decodePaymentRecord(id string, orderID string, doc paymentRecordDocument) (domain.PaymentRecord, error) {
	amount, err := parseMoney(doc.Amount)
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("amount: %w", err)
	}
	return domain.PaymentRecord{
		ID:            id,
		OrderID:       orderID,
		Method:        domain.PaymentMethod(doc.Method),
		Status:        domain.PaymentStatus(doc.Status),
		Amount:        amount,
		TransactionID: doc.TransactionID,
		Message:       doc.Message,
		CreatedAt:     doc.CreatedAt,
	}, nil
}
