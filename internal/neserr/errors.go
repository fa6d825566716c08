// Package neserr defines the error kinds shared across the emulator core.
// These are error kinds, not a type hierarchy: callers compare with
// errors.Is against the sentinel values below, and wrap them with
// fmt.Errorf("%w: ...") for diagnostic detail.
package neserr

import "errors"

var (
	// ErrRomInvalid: header magic mismatch or file truncated before the
	// declared ROM size, or an unsupported mapper id. Fatal at startup.
	ErrRomInvalid = errors.New("rom invalid")

	// ErrUnknownOpcode: CPU fetched an opcode with no defined behavior.
	// Fatal; callers should report PC and opcode.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrAddressUnreachable: access to a range marked panic-on-access,
	// e.g. a write-only PPU register read as if readable.
	ErrAddressUnreachable = errors.New("address unreachable")

	// ErrAudioUnavailable: host audio device could not be opened.
	// Non-fatal; callers should silence audio and continue.
	ErrAudioUnavailable = errors.New("audio unavailable")

	// ErrTestDivergence: test-mode observed state did not match a
	// reference trace line. Fatal with diagnostic.
	ErrTestDivergence = errors.New("test divergence")

	// ErrIO: underlying file or device read failed. Fatal for ROM load,
	// non-fatal for optional logs.
	ErrIO = errors.New("io error")
)
