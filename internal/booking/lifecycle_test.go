package booking

import (
	"testing"

	"github.com/stretchr/testify/require"

	"driveshare/internal/models"
)

func TestNextStatus(t *testing.T) {
	allowed := map[models.BookingStatus]map[Action]models.BookingStatus{
		models.BookingPending: {
			ActionApprove: models.BookingApproved,
			ActionReject:  models.BookingRejected,
			ActionCancel:  models.BookingCancelled,
		},
		models.BookingApproved: {
			ActionCancel:  models.BookingCancelled,
			ActionConfirm: models.BookingConfirmed,
		},
		models.BookingConfirmed: {
			ActionComplete: models.BookingCompleted,
		},
	}

	statuses := []models.BookingStatus{
		models.BookingPending, models.BookingApproved, models.BookingConfirmed,
		models.BookingRejected, models.BookingCancelled, models.BookingCompleted,
	}
	actions := []Action{ActionApprove, ActionReject, ActionCancel, ActionConfirm, ActionComplete, ActionView}

	for _, from := range statuses {
		for _, action := range actions {
			next, err := NextStatus(from, action)
			want, ok := allowed[from][action]
			if ok {
				require.NoError(t, err, "%s from %s", action, from)
				require.Equal(t, want, next)
				continue
			}
			require.Equal(t, CodeInvalidTransition, CodeOf(err), "%s from %s", action, from)
			var typed *Error
			require.ErrorAs(t, err, &typed)
			require.Equal(t, action, typed.Action)
			require.Equal(t, from, typed.Current)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, st := range []models.BookingStatus{models.BookingRejected, models.BookingCancelled, models.BookingCompleted} {
		require.True(t, st.IsTerminal())
		for action := range transitions {
			require.False(t, CanTransition(st, action), "%s from %s", action, st)
		}
	}
}
