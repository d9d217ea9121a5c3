//go:build linux

package infra

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// TestEncodeInputEvent verifies the wire layout: readers of
// /dev/input/eventX parse type at offset 16, code at 18 and value at
// 20, after the kernel timestamp.
func TestEncodeInputEvent(t *testing.T) {
	ev := encodeInputEvent(evKey, 57, keyDown)

	for i := 0; i < 16; i++ {
		assert.Zero(t, ev[i], "timestamp bytes must be left for the kernel")
	}
	assert.Equal(t, uint16(evKey), binary.LittleEndian.Uint16(ev[16:18]))
	assert.Equal(t, uint16(57), binary.LittleEndian.Uint16(ev[18:20]))
	assert.Equal(t, int32(keyDown), int32(binary.LittleEndian.Uint32(ev[20:24])))

	syn := encodeInputEvent(evSyn, synReport, 0)
	assert.Equal(t, uint16(evSyn), binary.LittleEndian.Uint16(syn[16:18]))
	assert.Equal(t, int32(0), int32(binary.LittleEndian.Uint32(syn[20:24])))
}

// TestUinputSetupLayout verifies the setup struct matches the kernel
// ABI: 8 byte id, 80 byte name, trailing u32.
func TestUinputSetupLayout(t *testing.T) {
	var s uinputSetup
	assert.Equal(t, uintptr(92), unsafe.Sizeof(s))
	assert.Equal(t, uintptr(8), unsafe.Sizeof(s.ID))
	assert.Equal(t, uintptr(8), unsafe.Offsetof(s.Name))
	assert.Equal(t, uintptr(88), unsafe.Offsetof(s.FFEffectsMax))
}
