package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeFillsOnlyEmptyFields(t *testing.T) {
	existing := &Business{
		Name:    "Cafe do Porto",
		Phone:   "15550100",
		Website: "https://porto.example",
	}
	candidate := &Business{
		Name:     "Cafe do Porto",
		Phone:    "19999999", // must not clobber
		Email:    "ola@porto.example",
		WhatsApp: "15550100",
	}

	changed := Merge(existing, candidate)

	assert.True(t, changed)
	assert.Equal(t, "15550100", existing.Phone)
	assert.Equal(t, "ola@porto.example", existing.Email)
	assert.Equal(t, "15550100", existing.WhatsApp)
	assert.Equal(t, "https://porto.example", existing.Website)
}

func TestMergeIsIdempotent(t *testing.T) {
	existing := &Business{Name: "Cafe do Porto"}
	candidate := &Business{Name: "Cafe do Porto", Phone: "15550100", Email: "ola@porto.example"}

	assert.True(t, Merge(existing, candidate))
	assert.False(t, Merge(existing, candidate))
}

func TestMergeNumericPointers(t *testing.T) {
	rating := 4.2
	count := 37
	existing := &Business{Name: "Cafe do Porto"}
	candidate := &Business{Name: "Cafe do Porto", Rating: &rating, ReviewCount: &count}

	assert.True(t, Merge(existing, candidate))
	assert.Equal(t, 4.2, *existing.Rating)
	assert.Equal(t, 37, *existing.ReviewCount)

	// The merged values are copies, not shared pointers.
	rating = 1.0
	assert.Equal(t, 4.2, *existing.Rating)

	newRating := 5.0
	assert.False(t, Merge(existing, &Business{Rating: &newRating}))
	assert.Equal(t, 4.2, *existing.Rating)
}

func TestMergeNothingNewReportsUnchanged(t *testing.T) {
	existing := &Business{Name: "Cafe do Porto", Phone: "15550100"}
	assert.False(t, Merge(existing, &Business{Name: "Cafe do Porto"}))
	assert.False(t, Merge(existing, &Business{Name: "Cafe do Porto", Phone: "15550100"}))
}

func TestIdentityKey(t *testing.T) {
	name, addr := IdentityKey(&Business{Name: "  Café do Porto ", Address: "Rua  Nova, 12"})
	assert.Equal(t, "cafe do porto", name)
	assert.Equal(t, "rua nova, 12", addr)

	name, addr = IdentityKey(&Business{Name: "Solo"})
	assert.Equal(t, "solo", name)
	assert.Equal(t, "", addr)
}
