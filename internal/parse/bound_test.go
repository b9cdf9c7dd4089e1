package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"seat-allocation-backend/internal/model"
)

func TestBound(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  int
		expectErr bool
	}{
		{name: "Plain number", raw: "10", expected: 10},
		{name: "Zero", raw: "0", expected: 0},
		{name: "Leading zeros", raw: "007", expected: 7},
		{name: "Surrounding spaces", raw: "  42 ", expected: 42},
		{name: "Quoted JSON string", raw: `"15"`, expected: 15},
		{name: "Negative", raw: "-3", expectErr: true},
		{name: "Fraction", raw: "1.5", expectErr: true},
		{name: "Exponent", raw: "1e3", expectErr: true},
		{name: "Letters", raw: "ten", expectErr: true},
		{name: "Empty", raw: "", expectErr: true},
		{name: "Overflow", raw: "99999999999999999999999", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := Bound(tc.raw)
			if tc.expectErr {
				assert.ErrorIs(t, err, model.ErrInput)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, n)
			}
		})
	}
}

func TestRange(t *testing.T) {
	start, end, err := Range("1", "100")
	assert.NoError(t, err)
	assert.Equal(t, 1, start)
	assert.Equal(t, 100, end)

	_, _, err = Range("1", "x")
	assert.ErrorIs(t, err, model.ErrInput)
	assert.Contains(t, err.Error(), "end")
}
