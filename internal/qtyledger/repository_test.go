package qtyledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
)

func mustCreateDocument(t *testing.T, tx *gorm.DB, doc *models.Document) *models.Document {
	t.Helper()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	require.NoError(t, tx.Create(doc).Error)
	return doc
}

func testKey() Key {
	return Key{
		SourceKind: enums.DocKindMaterialRequest,
		SourceNo:   fmt.Sprintf("MR-%s", uuid.NewString()[:8]),
		TargetKind: enums.DocKindPurchaseRequisition,
	}
}

func TestRepositoryAccumulatesAndFloors(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	err := conn.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		key := testKey()

		require.NoError(t, repo.AddConsumed(ctx, key, "WIDGET", qty("60")))
		require.NoError(t, repo.AddConsumed(ctx, key, "WIDGET", qty("15")))

		entries, err := repo.ListEntries(ctx, key)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.True(t, entries[0].Consumed.Equal(qty("75")))

		require.NoError(t, repo.SubtractConsumed(ctx, key, "WIDGET", qty("100")))
		entries, err = repo.ListEntries(ctx, key)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.True(t, entries[0].Consumed.IsZero(), "cancel must floor at zero")

		return gorm.ErrRecordNotFound
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryApplicationFlags(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	err := conn.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		doc := mustCreateDocument(t, tx, &models.Document{
			Kind:   enums.DocKindPurchaseRequisition,
			DocNo:  fmt.Sprintf("PR-%s", uuid.NewString()[:8]),
			Status: enums.DocStatusSubmitted,
		})

		applied, err := repo.HasApplication(ctx, doc.ID, models.LedgerDirectionSubmit)
		require.NoError(t, err)
		require.False(t, applied)

		require.NoError(t, repo.RecordApplication(ctx, doc.ID, models.LedgerDirectionSubmit))

		applied, err = repo.HasApplication(ctx, doc.ID, models.LedgerDirectionSubmit)
		require.NoError(t, err)
		require.True(t, applied)

		return gorm.ErrRecordNotFound
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryConsumerStatusPerKind(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	err := conn.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		mrKind := enums.DocKindMaterialRequest
		mrNo := fmt.Sprintf("MR-%s", uuid.NewString()[:8])

		mustCreateDocument(t, tx, &models.Document{
			Kind: mrKind, DocNo: mrNo, Status: enums.DocStatusSubmitted,
		})
		for _, status := range []enums.DocStatus{
			enums.DocStatusDraft, enums.DocStatusSubmitted, enums.DocStatusCancelled,
		} {
			mustCreateDocument(t, tx, &models.Document{
				Kind: enums.DocKindPurchaseRequisition, DocNo: fmt.Sprintf("PR-%s", uuid.NewString()[:8]),
				Status: status, SourceKind: &mrKind, SourceNo: &mrNo,
			})
		}

		key := Key{SourceKind: mrKind, SourceNo: mrNo, TargetKind: enums.DocKindPurchaseRequisition}
		consumers, err := repo.ListConsumers(ctx, key)
		require.NoError(t, err)
		require.Len(t, consumers, 2, "drafts hold quantity on the generic chain; cancelled never count")

		submitted, err := repo.ListSubmittedConsumers(ctx, key)
		require.NoError(t, err)
		require.Len(t, submitted, 1, "the persisted entries agree with submitted consumers only")

		return gorm.ErrRecordNotFound
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryTwoHopConsumerListing(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	err := conn.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		rfqNo := fmt.Sprintf("RFQ-%s", uuid.NewString()[:8])
		rfqKind := enums.DocKindRFQ
		sqKind := enums.DocKindSupplierQuotation

		mustCreateDocument(t, tx, &models.Document{
			Kind: rfqKind, DocNo: rfqNo, Status: enums.DocStatusSubmitted,
		})
		poStatuses := []enums.DocStatus{
			enums.DocStatusSubmitted, enums.DocStatusCancelled, enums.DocStatusDraft,
		}
		for i, poStatus := range poStatuses {
			sqNo := fmt.Sprintf("SQ-%d-%s", i, uuid.NewString()[:8])
			mustCreateDocument(t, tx, &models.Document{
				Kind: sqKind, DocNo: sqNo, Status: enums.DocStatusSubmitted,
				SourceKind: &rfqKind, SourceNo: &rfqNo,
			})
			localSQ := sqNo
			mustCreateDocument(t, tx, &models.Document{
				Kind: enums.DocKindPurchaseOrder, DocNo: fmt.Sprintf("PO-%d-%s", i, uuid.NewString()[:8]),
				Status: poStatus, SourceKind: &sqKind, SourceNo: &localSQ,
			})
		}

		key := Key{SourceKind: rfqKind, SourceNo: rfqNo, TargetKind: enums.DocKindPurchaseOrder}
		consumers, err := repo.ListConsumers(ctx, key)
		require.NoError(t, err)
		require.Len(t, consumers, 1, "only submitted POs count on the RFQ bucket; POs span all quotations")

		return gorm.ErrRecordNotFound
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
