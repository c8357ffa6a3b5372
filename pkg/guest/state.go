// Package guest describes the emulated (riscv64) CPU state as seen by the
// backend: a flat structure addressed by byte displacement from a dedicated
// host register. The backend never touches the state itself; it only needs
// the layout to classify and rewrite context loads and stores.
package guest

import "fmt"

// Addr is a guest code address.
type Addr uint64

// NullAddr marks "no address", e.g. an unresolved jump target.
const NullAddr Addr = 0

// Register file shape of the riscv64 guest.
const (
	NumXRegs = 32 // x0-x31, 8 bytes each
	NumFRegs = 32 // f0-f31, 8 bytes each
	NumVRegs = 32 // v0-v31, 16 bytes each
)

// Byte layout of the CPU state structure. Integer and float registers are
// 8-byte slots, vector registers are 16-byte slots kept 16-byte aligned so
// they can be moved with aligned 128-bit loads and stores.
const (
	xRegsOffset = 0
	fRegsOffset = xRegsOffset + NumXRegs*8
	vRegsOffset = fRegsOffset + NumFRegs*8

	// The memory reservation established by LR/SC sequences. It is
	// written partially by the atomics fast path, so the context
	// optimizer must not merge accesses to it.
	ReservationAddrOffset  = vRegsOffset + NumVRegs*16
	ReservationValueOffset = ReservationAddrOffset + 8
	reservationValueSize   = 16

	InsnAddrOffset = ReservationValueOffset + reservationValueSize
	FrmOffset      = InsnAddrOffset + 8

	// StateSize bounds every displacement the backend may touch.
	StateSize = FrmOffset + 8
)

// XRegOffset returns the byte displacement of integer register x[i].
func XRegOffset(i int) uint32 {
	if i < 0 || i >= NumXRegs {
		panic(fmt.Sprintf("guest: x register index %d out of range", i))
	}
	return uint32(xRegsOffset + i*8)
}

// FRegOffset returns the byte displacement of float register f[i].
func FRegOffset(i int) uint32 {
	if i < 0 || i >= NumFRegs {
		panic(fmt.Sprintf("guest: f register index %d out of range", i))
	}
	return uint32(fRegsOffset + i*8)
}

// VRegOffset returns the byte displacement of vector register v[i].
func VRegOffset(i int) uint32 {
	if i < 0 || i >= NumVRegs {
		panic(fmt.Sprintf("guest: v register index %d out of range", i))
	}
	return uint32(vRegsOffset + i*16)
}

// InReservation reports whether disp falls inside the LR/SC reservation
// fields, which are exempt from context access optimization.
func InReservation(disp uint32) bool {
	return disp >= ReservationValueOffset && disp < ReservationValueOffset+reservationValueSize
}
