package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/routedesk/internal/validation"
)

type sample struct {
	Name  string `validate:"required"`
	Count int    `validate:"gte=1,lte=10"`
	Mode  string `validate:"omitempty,oneof=EASY REALISM"`
}

func TestGet_Singleton(t *testing.T) {
	assert.Same(t, validation.Get(), validation.Get())
}

func TestStruct_Valid(t *testing.T) {
	err := validation.Struct(&sample{Name: "hkg", Count: 3, Mode: "EASY"})
	assert.NoError(t, err)
}

func TestStruct_CollectsFieldErrors(t *testing.T) {
	err := validation.Struct(&sample{Count: 11, Mode: "HARD"})
	require.Error(t, err)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 3)

	assert.Equal(t, "Name", verr.Fields[0].Field)
	assert.Equal(t, "Name is required", verr.Fields[0].Message)
	assert.Equal(t, "Count must be less than or equal to 10", verr.Fields[1].Message)
	assert.Equal(t, "Mode must be one of: EASY REALISM", verr.Fields[2].Message)
}

func TestVar(t *testing.T) {
	assert.NoError(t, validation.Var("distance", 16000.0, "gt=0,lte=50000"))

	err := validation.Var("distance", -1.0, "gt=0,lte=50000")
	require.Error(t, err)
	assert.Equal(t, "distance must be greater than 0", err.Error())
}

type jsonSample struct {
	Origins  []string `json:"origins" validate:"required,min=1,dive,required"`
	Aircraft string   `json:"aircraft,omitempty" validate:"required"`
}

func TestStruct_UsesJSONFieldNames(t *testing.T) {
	err := validation.Struct(&jsonSample{Origins: []string{"HKG", ""}})
	require.Error(t, err)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 2)

	assert.Equal(t, "origins[1]", verr.Fields[0].Field)
	assert.Equal(t, "aircraft", verr.Fields[1].Field)
	assert.Equal(t, "aircraft is required", verr.Fields[1].Message)
}
