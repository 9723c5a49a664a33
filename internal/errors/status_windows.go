//go:build windows

package errors

import "golang.org/x/sys/windows"

const statusGeneric = uint32(windows.ERROR_GEN_FAILURE)

func defaultStatus(kind Kind) uint32 {
	switch kind {
	case KindInvalidCommandLine:
		return uint32(windows.ERROR_INVALID_COMMAND_LINE)
	case KindInvalidCharacterSequence:
		return uint32(windows.ERROR_NO_UNICODE_TRANSLATION)
	case KindAllocation:
		return uint32(windows.ERROR_NOT_ENOUGH_MEMORY)
	case KindUnrecognizedEncoding, KindRoundTripMismatch:
		return uint32(windows.ERROR_INVALID_DATA)
	default:
		return statusGeneric
	}
}
