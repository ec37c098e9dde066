package auction

import (
	"errors"
	"testing"
	"time"

	"vehicle-auction-service/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestAuction_ScheduleValidatesWindow(t *testing.T) {
	a := &Auction{Status: StatusDraft}

	assert.ErrorIs(t, a.Schedule(now.Add(-time.Minute), now.Add(time.Hour), now), shared.ErrInvalidStartTime)
	assert.ErrorIs(t, a.Schedule(now.Add(time.Hour), now.Add(time.Hour), now), shared.ErrInvalidEndTime)
	assert.Equal(t, StatusDraft, a.Status)

	require.NoError(t, a.Schedule(now.Add(time.Hour), now.Add(3*time.Hour), now))
	assert.Equal(t, StatusScheduled, a.Status)
	assert.True(t, a.AcceptsPreBids())
}

func TestAuction_StartSetsPointer(t *testing.T) {
	a := &Auction{Status: StatusDraft}
	assert.ErrorIs(t, a.Start("L1", now), shared.ErrAuctionNotStartable)

	require.NoError(t, a.Schedule(now.Add(time.Hour), now.Add(2*time.Hour), now))
	require.NoError(t, a.Start("L1", now))

	assert.True(t, a.IsRunning())
	require.NotNil(t, a.CurrentLotLabel)
	assert.Equal(t, "L1", *a.CurrentLotLabel)
	assert.False(t, a.AcceptsPreBids())
}

func TestAuction_EndClearsPointer(t *testing.T) {
	a := &Auction{Status: StatusScheduled}
	require.NoError(t, a.Start("L1", now))
	require.NoError(t, a.End(now))

	assert.Equal(t, StatusEnded, a.Status)
	assert.Nil(t, a.CurrentLotLabel)
	assert.Nil(t, a.CurrentLotStartTime)
	assert.ErrorIs(t, a.End(now), shared.ErrAuctionNotRunning)
}

func TestAuction_Extend(t *testing.T) {
	end := now.Add(time.Hour)
	a := &Auction{Status: StatusRunning, EndTime: &end}

	assert.ErrorIs(t, a.Extend(10, "", now), shared.ErrExtensionReason)
	assert.ErrorIs(t, a.Extend(0, "late bidders", now), shared.ErrExtensionMinutes)

	require.NoError(t, a.Extend(15, "late bidders", now))
	assert.Equal(t, 1, a.ExtendedCount)
	assert.Equal(t, end.Add(15*time.Minute), *a.EndTime)

	a.Status = StatusScheduled
	assert.ErrorIs(t, a.Extend(15, "late bidders", now), shared.ErrAuctionNotRunning)
}

func TestAuction_CancelFromAnyNonTerminalState(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusScheduled, StatusRunning} {
		label := "L1"
		a := &Auction{Status: status, CurrentLotLabel: &label}
		require.NoError(t, a.Cancel("venue closed", now))
		assert.Equal(t, StatusCancelled, a.Status)
		assert.Nil(t, a.CurrentLotLabel)
	}

	for _, status := range []Status{StatusEnded, StatusCancelled} {
		a := &Auction{Status: status}
		err := a.Cancel("again", now)
		assert.True(t, errors.Is(err, shared.ErrConflictingState))
	}

	a := &Auction{Status: StatusDraft}
	assert.ErrorIs(t, a.Cancel("", now), shared.ErrCancelReason)
}
