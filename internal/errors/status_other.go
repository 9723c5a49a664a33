//go:build !unix && !windows

package errors

const statusGeneric = 1

func defaultStatus(Kind) uint32 {
	return statusGeneric
}
