package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleRingPushPop(t *testing.T) {
	r := NewSampleRing(4)
	r.Push(10)
	r.Push(20)
	r.Push(30)

	assert.Equal(t, 3, r.Available())

	out := make([]int16, 2)
	n := r.Pop(out)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int16{10, 20}, out)
	assert.Equal(t, 1, r.Available())
}

func TestSampleRingRoundsCapacityUpToPowerOfTwo(t *testing.T) {
	r := NewSampleRing(5)
	assert.Equal(t, 8, len(r.buf))
}

func TestSampleRingPopMoreThanAvailable(t *testing.T) {
	r := NewSampleRing(8)
	r.Push(1)
	r.Push(2)

	out := make([]int16, 10)
	n := r.Pop(out)
	assert.Equal(t, 2, n)
	assert.Equal(t, int16(1), out[0])
	assert.Equal(t, int16(2), out[1])
}

func TestSampleRingOverwritesOldestWhenFull(t *testing.T) {
	r := NewSampleRing(4) // rounds to 4
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Push(4)
	r.Push(5) // ring full, drops oldest unread sample (1)

	out := make([]int16, 4)
	n := r.Pop(out)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int16{2, 3, 4, 5}, out)
}

func TestSampleRingEmptyPopReturnsZero(t *testing.T) {
	r := NewSampleRing(4)
	out := make([]int16, 4)
	n := r.Pop(out)
	assert.Equal(t, 0, n)
}

func TestAPUPullAudioDeinterleavesIntoLeftRight(t *testing.T) {
	apu := New()
	apu.ring.Push(100)
	apu.ring.Push(-100)
	apu.ring.Push(200)
	apu.ring.Push(-200)

	left := make([]int16, 2)
	right := make([]int16, 2)
	n := apu.PullAudio(left, right)

	assert.Equal(t, 2, n)
	assert.Equal(t, []int16{100, 200}, left)
	assert.Equal(t, []int16{-100, -200}, right)
}
