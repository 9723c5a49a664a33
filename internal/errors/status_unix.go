//go:build unix

package errors

import "golang.org/x/sys/unix"

const statusGeneric = uint32(unix.EIO)

func defaultStatus(kind Kind) uint32 {
	switch kind {
	case KindInvalidCommandLine, KindUnrecognizedEncoding, KindRoundTripMismatch:
		return uint32(unix.EINVAL)
	case KindInvalidCharacterSequence:
		return uint32(unix.EILSEQ)
	case KindAllocation:
		return uint32(unix.ENOMEM)
	default:
		return statusGeneric
	}
}
