package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaultsComponentAndCategory(t *testing.T) {
	ee := New(NewStd("boom")).Build()
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, "boom", ee.Error())
}

func TestBuildCarriesExplicitFields(t *testing.T) {
	ee := New(NewStd("bad cutoff")).
		Component("dsp-filter").
		Category(CategoryFilter).
		Priority(PriorityHigh).
		Context("cutoff_hz", 30000).
		Build()

	assert.Equal(t, "dsp-filter", ee.Component)
	assert.Equal(t, CategoryFilter, ee.Category)
	assert.Equal(t, PriorityHigh, ee.Priority)
	assert.Equal(t, 30000, ee.GetContext()["cutoff_hz"])
}

func TestPriorityRejectsInvalidValue(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent-ish").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestContractErrorIsCategorized(t *testing.T) {
	ee := ContractError("peak-1", "peak_finder", NewStd("shape mismatch"))
	assert.True(t, IsCategory(ee, CategoryNodeContract))
	assert.Equal(t, "peak-1", ee.GetContext()["node_id"])
}

func TestIsUnwrapsEnhancedError(t *testing.T) {
	base := NewStd("root cause")
	ee := New(base).Build()
	require.ErrorIs(t, ee, base)
}
