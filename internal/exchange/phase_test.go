package exchange

import (
	"context"
	"testing"

	"koon/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseDefaultsToDonation(t *testing.T) {
	svc := newTestService()

	setting, err := svc.Phase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseDonation, setting.Phase)
	assert.Nil(t, setting.LastUpdated)
}

func TestSetPhaseRoundTrips(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	setting, err := svc.SetPhase(ctx, types.PhaseExchange)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseExchange, setting.Phase)
	require.NotNil(t, setting.LastUpdated)

	stored, err := svc.Phase(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseExchange, stored.Phase)
	require.NotNil(t, stored.LastUpdated)

	_, err = svc.SetPhase(ctx, types.PhaseDonation)
	require.NoError(t, err)
	stored, err = svc.Phase(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseDonation, stored.Phase)
}

func TestSetPhaseRejectsUnknownValue(t *testing.T) {
	svc := newTestService()

	_, err := svc.SetPhase(context.Background(), types.ExchangePhase("closed"))
	assert.ErrorIs(t, err, types.ErrSettingInvalid)
}

func TestSetPhaseDoesNotTouchRecords(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec := createRecord(t, svc, "Calculus Notes")
	_, err := svc.Approve(ctx, rec.ID, rec.Items[0].ID)
	require.NoError(t, err)

	_, err = svc.SetPhase(ctx, types.PhaseExchange)
	require.NoError(t, err)

	stored, err := svc.Record(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusApproved, stored.Items[0].Status)
}
