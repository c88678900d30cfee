package admission

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToMultiplier(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{name: "int", in: 3, want: 3, ok: true},
		{name: "int32", in: int32(4), want: 4, ok: true},
		{name: "int64", in: int64(5), want: 5, ok: true},
		{name: "uint8", in: uint8(6), want: 6, ok: true},
		{name: "uint64 overflow", in: uint64(math.MaxUint64), want: math.MaxInt, ok: true},
		{name: "float64", in: 7.8, want: 7, ok: true},
		{name: "float32", in: float32(2.5), want: 2, ok: true},
		{name: "huge float", in: 1e300, want: math.MaxInt, ok: true},
		{name: "json integer", in: json.Number("12"), want: 12, ok: true},
		{name: "json float", in: json.Number("1.5"), want: 1, ok: true},
		{name: "string", in: " 9 ", want: 9, ok: true},
		{name: "negative int", in: -1},
		{name: "negative json", in: json.Number("-2")},
		{name: "NaN", in: math.NaN()},
		{name: "infinity", in: math.Inf(1)},
		{name: "word", in: "ten"},
		{name: "bool", in: true},
		{name: "list", in: []any{1}},
		{name: "nil", in: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toMultiplier(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSaturatingArithmetic(t *testing.T) {
	assert.Equal(t, 5, addSaturating(2, 3))
	assert.Equal(t, math.MaxInt, addSaturating(math.MaxInt, 1))
	assert.Equal(t, math.MaxInt, addSaturating(math.MaxInt-1, 2))

	assert.Equal(t, 6, mulSaturating(2, 3))
	assert.Equal(t, 0, mulSaturating(0, math.MaxInt))
	assert.Equal(t, 0, mulSaturating(math.MaxInt, 0))
	assert.Equal(t, math.MaxInt, mulSaturating(math.MaxInt/2, 3))
}
