package model

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationError_Message(t *testing.T) {
	assert.Contains(t, (&ClassificationError{}).Error(), "no cell")
	assert.Contains(t, (&ClassificationError{Matches: []int{3, 4}}).Error(), "2 cells (3, 4)")
}

func TestClassificationError_IsPrecondition(t *testing.T) {
	err := eris.Wrap(&ClassificationError{Matches: []int{1, 2}}, "pipeline: classify")

	var ce *ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []int{1, 2}, ce.Matches)

	var pe *PreconditionError
	assert.True(t, errors.As(err, &pe))
}

func TestInputError_Unwrap(t *testing.T) {
	base := errors.New("negative count")
	err := eris.Wrap(NewInputError("line 7", base), "counts: read")

	var ie *InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "line 7", ie.Record)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "invalid input line 7: negative count", ie.Error())
}

func TestInconsistencyError_Message(t *testing.T) {
	assert.Equal(t, "panel: cell 12 is not in the classified grid", (&InconsistencyError{CellID: 12}).Error())
}

func TestUnitType_Valid(t *testing.T) {
	assert.True(t, UnitTreated.Valid())
	assert.True(t, UnitExcluded.Valid())
	assert.True(t, UnitDonor.Valid())
	assert.False(t, UnitType("control").Valid())
}
