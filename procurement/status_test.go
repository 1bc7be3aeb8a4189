package procurement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/procurement-engine/procurement"
)

func TestTransition_AllowedPaths(t *testing.T) {
	cases := []struct {
		from   procurement.Status
		action procurement.Action
		to     procurement.Status
	}{
		{procurement.StatusDraft, procurement.ActionSubmit, procurement.StatusPending},
		{procurement.StatusPending, procurement.ActionApprove, procurement.StatusApproved},
		{procurement.StatusPending, procurement.ActionMarkUrgent, procurement.StatusUrgent},
		{procurement.StatusUrgent, procurement.ActionApprove, procurement.StatusApproved},
		{procurement.StatusPending, procurement.ActionObserve, procurement.StatusObserved},
		{procurement.StatusObserved, procurement.ActionStartCorrection, procurement.StatusInCorrection},
		{procurement.StatusInCorrection, procurement.ActionResubmit, procurement.StatusPending},
		{procurement.StatusOnHold, procurement.ActionResume, procurement.StatusPending},
		{procurement.StatusApproved, procurement.ActionSendToPurchasing, procurement.StatusPurchasing},
		{procurement.StatusApproved, procurement.ActionPurchasingFailed, procurement.StatusOnHold},
		{procurement.StatusPurchasing, procurement.ActionStagePurchasing, procurement.StatusInProduction},
		{procurement.StatusInProduction, procurement.ActionStageReceived, procurement.StatusClosed},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.action), func(t *testing.T) {
			to, err := procurement.Transition(tc.from, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.to, to)
		})
	}
}

func TestTransition_TerminalStatusesAcceptNothing(t *testing.T) {
	actions := []procurement.Action{
		procurement.ActionSubmit, procurement.ActionApprove, procurement.ActionReject,
		procurement.ActionObserve, procurement.ActionHold, procurement.ActionResume,
		procurement.ActionCancel, procurement.ActionUnifyHold, procurement.ActionSendToPurchasing,
		procurement.ActionStageReceived, procurement.ActionFulfillInternally,
	}

	for _, s := range procurement.AllStatuses {
		if !s.Terminal() {
			continue
		}
		for _, a := range actions {
			to, err := procurement.Transition(s, a)
			var terr *procurement.TransitionError
			require.ErrorAs(t, err, &terr, "%s/%s", s, a)
			assert.ErrorIs(t, err, procurement.ErrInvalidTransition)
			assert.Equal(t, s, to)
		}
	}
}

func TestTransition_CannotApproveFromObserved(t *testing.T) {
	assert.False(t, procurement.CanApply(procurement.StatusObserved, procurement.ActionApprove))
	assert.False(t, procurement.CanApply(procurement.StatusDraft, procurement.ActionApprove))
	assert.True(t, procurement.CanApply(procurement.StatusObserved, procurement.ActionReject))
}

func TestStatusSets(t *testing.T) {
	assert.True(t, procurement.StatusClosed.Terminal())
	assert.True(t, procurement.StatusRejected.Terminal())
	assert.True(t, procurement.StatusCancelled.Terminal())
	assert.False(t, procurement.StatusOnHold.Terminal())

	assert.True(t, procurement.StatusPurchasing.Open())
	assert.False(t, procurement.StatusObserved.Open())
	assert.False(t, procurement.Status("bogus").Valid())
}
