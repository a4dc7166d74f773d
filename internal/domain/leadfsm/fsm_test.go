package leadfsm

import (
	"errors"
	"testing"

	"github.com/leadctl/optimizer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_AllowedEdges(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from, to models.LeadStatus
	}{
		{models.StatusNew, models.StatusContacted},
		{models.StatusNew, models.StatusDormant},
		{models.StatusNew, models.StatusLost},
		{models.StatusContacted, models.StatusQualified},
		{models.StatusQualified, models.StatusAppointmentSched},
		{models.StatusAppointmentSched, models.StatusConverted},
		{models.StatusAppointmentSched, models.StatusContacted},
		{models.StatusDormant, models.StatusContacted},
	}
	for _, c := range cases {
		got, err := Transition(c.from, c.to)
		require.NoError(t, err)
		assert.Equal(t, c.to, got)
	}
}

func TestTransition_RejectsIllegalEdge(t *testing.T) {
	t.Parallel()
	_, err := Transition(models.StatusNew, models.StatusConverted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidStateTransition))
}

func TestTransition_TerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	t.Parallel()
	for _, terminal := range []models.LeadStatus{models.StatusConverted, models.StatusLost} {
		assert.True(t, IsTerminal(terminal))
		_, err := Transition(terminal, models.StatusContacted)
		assert.Error(t, err)
	}
}
