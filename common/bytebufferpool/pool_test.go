package bytebufferpool

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndex(t *testing.T) {
	cases := map[int]int{
		0:             0,
		1:             0,
		minSize - 1:   0,
		minSize:       0,
		minSize + 1:   1,
		2*minSize - 1: 1,
		2 * minSize:   1,
		2*minSize + 1: 2,
		maxSize - 1:   steps - 1,
		maxSize:       steps - 1,
		maxSize + 1:   steps - 1,
	}
	for n, want := range cases {
		assert.Equal(t, want, index(n), "n=%d", n)
	}
}

func TestPoolCalibrate(t *testing.T) {
	var p Pool
	for i := 0; i < steps*calibrateCallsThreshold; i++ {
		n := 1004
		if i%15 == 0 {
			n = rand.Intn(15234)
		}
		b := p.Get()
		assert.Equal(t, 0, b.Len())
		b.B = append(b.B, make([]byte, n)...)
		p.Put(b)
	}
	assert.NotZero(t, p.defaultSize)
	assert.NotZero(t, p.maxSize)
}
