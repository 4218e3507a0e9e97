package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_Normalize(t *testing.T) {
	t.Run("Fills defaults for zero values", func(t *testing.T) {
		p := Page{}.Normalize()
		assert.Equal(t, 1, p.Number)
		assert.Equal(t, 20, p.Size)
		assert.Equal(t, 0, p.Offset())
	})

	t.Run("Caps oversized pages", func(t *testing.T) {
		p := Page{Number: 3, Size: 10000}.Normalize()
		assert.Equal(t, 500, p.Size)
		assert.Equal(t, 1000, p.Offset())
	})
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 21, 1, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(21), p.Total)

	empty := NewPaginated([]int{}, 0, 1, 0)
	assert.Equal(t, 0, empty.TotalPages)
}
