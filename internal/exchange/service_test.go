package exchange

import (
	"context"
	"fmt"
	"io"
	"testing"

	"koon/internal/docstore"
	"koon/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(docstore.NewMemstore(), logger)
}

func createRecord(t *testing.T, svc *Service, items ...string) *types.DonationRecord {
	t.Helper()

	input := CreateRecordInput{
		DonorName:  "Omar Khalil",
		DonorPhone: "0785551212",
	}
	for _, name := range items {
		input.Items = append(input.Items, NewItem{Name: name})
	}

	rec, err := svc.CreateRecord(context.Background(), input)
	require.NoError(t, err)
	return rec
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Calculus Notes")
	itemID := rec.Items[0].ID

	require.Equal(t, types.ItemStatusPending, rec.Items[0].Status)
	require.Equal(t, types.AggregateStatusApproved, rec.AggregateStatus)

	rec, err := svc.Approve(ctx, rec.ID, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusApproved, rec.Items[0].Status)
	assert.Equal(t, types.AggregateStatusApproved, rec.AggregateStatus)

	rec, err = svc.Reserve(ctx, rec.ID, itemID, types.TakerInfo{Name: "Sara", Phone: "0791234567"})
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusReserved, rec.Items[0].Status)
	require.NotNil(t, rec.Items[0].TakerInfo)
	assert.Equal(t, "Sara", rec.Items[0].TakerInfo.Name)
	assert.NotNil(t, rec.Items[0].TakerInfo.ReservedAt)
	assert.Equal(t, types.AggregateStatusReserved, rec.AggregateStatus)

	rec, err = svc.Handover(ctx, rec.ID, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusCompleted, rec.Items[0].Status)
	assert.NotNil(t, rec.Items[0].HandedOverAt)

	// Taker retained for record-keeping.
	require.NotNil(t, rec.Items[0].TakerInfo)
	assert.Equal(t, "Sara", rec.Items[0].TakerInfo.Name)

	// Round-trips through storage.
	stored, err := svc.Record(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusCompleted, stored.Items[0].Status)
	assert.Equal(t, types.AggregateStatusReserved, stored.AggregateStatus)
}

func TestCancelClearsTaker(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Physics lab manual")
	itemID := rec.Items[0].ID

	_, err := svc.Approve(ctx, rec.ID, itemID)
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, rec.ID, itemID, types.TakerInfo{Name: "Sara", Phone: "0791234567"})
	require.NoError(t, err)

	rec, err = svc.Cancel(ctx, rec.ID, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusApproved, rec.Items[0].Status)
	assert.Nil(t, rec.Items[0].TakerInfo)

	stored, err := svc.Record(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Items[0].TakerInfo)
}

func TestRevertClearsTakerAndStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Statistics bundle")
	itemID := rec.Items[0].ID

	_, err := svc.Approve(ctx, rec.ID, itemID)
	require.NoError(t, err)

	rec, err = svc.Revert(ctx, rec.ID, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusPending, rec.Items[0].Status)
	assert.Nil(t, rec.Items[0].TakerInfo)
}

func TestCompletedIsTerminal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Linear Algebra textbook")
	itemID := rec.Items[0].ID

	_, err := svc.Approve(ctx, rec.ID, itemID)
	require.NoError(t, err)
	_, err = svc.ManualReserve(ctx, rec.ID, itemID, types.TakerInfo{Name: "Lina", Phone: "0779876543"})
	require.NoError(t, err)
	_, err = svc.Handover(ctx, rec.ID, itemID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, rec.ID, itemID)
	assert.ErrorIs(t, err, types.ErrItemCompleted)
	_, err = svc.Cancel(ctx, rec.ID, itemID)
	assert.ErrorIs(t, err, types.ErrItemCompleted)
	_, err = svc.Handover(ctx, rec.ID, itemID)
	assert.ErrorIs(t, err, types.ErrItemCompleted)

	err = svc.RemoveItem(ctx, rec.ID, itemID)
	assert.ErrorIs(t, err, types.ErrItemCompleted)

	stored, err := svc.Record(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusCompleted, stored.Items[0].Status)
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Drawing kit")
	itemID := rec.Items[0].ID

	// Cannot reserve or hand over a pending item.
	_, err := svc.ManualReserve(ctx, rec.ID, itemID, types.TakerInfo{Name: "Lina", Phone: "0779876543"})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	_, err = svc.Handover(ctx, rec.ID, itemID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	_, err = svc.Approve(ctx, rec.ID, itemID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, rec.ID, itemID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestMultiItemPartialAggregate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Calculus Notes", "Chemistry flashcards")

	_, err := svc.Approve(ctx, rec.ID, rec.Items[0].ID)
	require.NoError(t, err)
	rec2, err := svc.ManualReserve(ctx, rec.ID, rec.Items[0].ID, types.TakerInfo{Name: "Sara", Phone: "0791234567"})
	require.NoError(t, err)

	// Sibling still pending, so the record is not fully committed.
	assert.Equal(t, types.ItemStatusReserved, rec2.Items[0].Status)
	assert.Equal(t, types.ItemStatusPending, rec2.Items[1].Status)
	assert.Equal(t, types.AggregateStatusApproved, rec2.AggregateStatus)

	_, err = svc.Approve(ctx, rec.ID, rec.Items[1].ID)
	require.NoError(t, err)
	_, err = svc.ManualReserve(ctx, rec.ID, rec.Items[1].ID, types.TakerInfo{Name: "Omar", Phone: "0785551212"})
	require.NoError(t, err)
	rec3, err := svc.Handover(ctx, rec.ID, rec.Items[1].ID)
	require.NoError(t, err)

	// reserved + completed counts as fully committed.
	assert.Equal(t, types.AggregateStatusReserved, rec3.AggregateStatus)
}

func TestReserveRequiresTakerContact(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Calculator")
	_, err := svc.Approve(ctx, rec.ID, rec.Items[0].ID)
	require.NoError(t, err)

	_, err = svc.ManualReserve(ctx, rec.ID, rec.Items[0].ID, types.TakerInfo{Name: "Sara"})
	assert.ErrorIs(t, err, types.ErrTakerRequired)
	_, err = svc.ManualReserve(ctx, rec.ID, rec.Items[0].ID, types.TakerInfo{Phone: "0791234567"})
	assert.ErrorIs(t, err, types.ErrTakerRequired)

	stored, err := svc.Record(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusApproved, stored.Items[0].Status)
}

func TestManualReserveSetsFlagAndIgnoresQuota(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	taker := types.TakerInfo{Name: "Sara", Phone: "0791234567", StudentID: "20201234"}

	var itemIDs [][2]string
	for _, name := range []string{"Notes A", "Notes B", "Notes C"} {
		rec := createRecord(t, svc, name)
		_, err := svc.Approve(ctx, rec.ID, rec.Items[0].ID)
		require.NoError(t, err)
		itemIDs = append(itemIDs, [2]string{rec.ID, rec.Items[0].ID})
	}

	// Two reservations already held; the third still succeeds.
	for _, ids := range itemIDs {
		rec, err := svc.ManualReserve(ctx, ids[0], ids[1], taker)
		require.NoError(t, err)
		require.NotNil(t, rec.Items[0].TakerInfo)
		assert.True(t, rec.Items[0].TakerInfo.IsManual)
	}

	summary, err := svc.TakerSummary(ctx, "20201234")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ReservationCount)
	assert.False(t, summary.IsDonor)
}

func TestReserveMarksDonorPriority(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	// Sara has her own donation with an approved item.
	donation, err := svc.CreateRecord(ctx, CreateRecordInput{
		DonorName:      "Sara Haddad",
		DonorPhone:     "0791234567",
		DonorStudentID: "20201234",
		Items:          []NewItem{{Name: "Microeconomics sheets"}},
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, donation.ID, donation.Items[0].ID)
	require.NoError(t, err)

	rec := createRecord(t, svc, "Arabic anthology")
	_, err = svc.Approve(ctx, rec.ID, rec.Items[0].ID)
	require.NoError(t, err)

	rec, err = svc.Reserve(ctx, rec.ID, rec.Items[0].ID, types.TakerInfo{
		Name: "Sara", Phone: "0791234567", StudentID: "20201234",
	})
	require.NoError(t, err)
	require.NotNil(t, rec.Items[0].TakerInfo)
	assert.True(t, rec.Items[0].TakerInfo.IsDonor)
	assert.False(t, rec.Items[0].TakerInfo.IsManual)

	summary, err := svc.TakerSummary(ctx, "20201234")
	require.NoError(t, err)
	assert.True(t, summary.IsDonor)
	assert.Equal(t, 1, summary.ReservationCount)
}

func TestOperationsOnMissingRecord(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Approve(ctx, "gone", "item")
	assert.ErrorIs(t, err, types.ErrRecordNotFound)

	err = svc.DeleteRecord(ctx, "gone")
	assert.ErrorIs(t, err, types.ErrRecordNotFound)

	_, err = svc.Record(ctx, "gone")
	assert.ErrorIs(t, err, types.ErrRecordNotFound)
}

func TestOperationsOnMissingItem(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Calculus Notes")

	_, err := svc.Approve(ctx, rec.ID, "no-such-item")
	assert.ErrorIs(t, err, types.ErrItemNotFound)
}

func TestRemoveLastItemDeletesRecord(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Notes A", "Notes B")

	require.NoError(t, svc.RemoveItem(ctx, rec.ID, rec.Items[0].ID))

	stored, err := svc.Record(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Notes B", stored.Items[0].Name)

	// Removing the last item removes the record: zero-item records must
	// not exist.
	require.NoError(t, svc.RemoveItem(ctx, rec.ID, stored.Items[0].ID))

	_, err = svc.Record(ctx, rec.ID)
	assert.ErrorIs(t, err, types.ErrRecordNotFound)
}

func TestCreateRecordValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CreateRecord(ctx, CreateRecordInput{DonorPhone: "0791234567", Items: []NewItem{{Name: "x"}}})
	assert.ErrorIs(t, err, types.ErrInvalidRecord)

	_, err = svc.CreateRecord(ctx, CreateRecordInput{DonorName: "Sara", DonorPhone: "0791234567"})
	assert.ErrorIs(t, err, types.ErrInvalidRecord)

	_, err = svc.CreateRecord(ctx, CreateRecordInput{
		DonorName: "Sara", DonorPhone: "0791234567", Items: []NewItem{{Name: "  "}},
	})
	assert.ErrorIs(t, err, types.ErrInvalidRecord)
}

// contendedStore simulates a store that cannot commit within its retry
// budget, the failure mode of sustained write contention on one record.
type contendedStore struct {
	docstore.Store
}

func (contendedStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return fmt.Errorf("%w: could not serialize access", docstore.ErrRetryExhausted)
}

func TestRetryExhaustionSurfacesAsConflict(t *testing.T) {
	ctx := context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := NewService(contendedStore{}, logger)

	_, err := svc.Approve(ctx, "rec1", "itm1")
	assert.ErrorIs(t, err, types.ErrConflict)

	_, err = svc.CreateRecord(ctx, CreateRecordInput{
		DonorName:  "Sara",
		DonorPhone: "0791234567",
		Items:      []NewItem{{Name: "Notes"}},
	})
	assert.ErrorIs(t, err, types.ErrConflict)

	err = svc.RemoveItem(ctx, "rec1", "itm1")
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestListItemsFlattensAcrossRecords(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	createRecord(t, svc, "A1", "A2")
	createRecord(t, svc, "B1")

	items, err := svc.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)

	for _, li := range items {
		assert.NotNil(t, li.Record)
		assert.Equal(t, li.Item.ID, li.Record.Items[li.OriginalIndex].ID)
	}
}
