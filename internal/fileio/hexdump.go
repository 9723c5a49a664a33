package fileio

import (
	"encoding/hex"
	"fmt"
	"io"
)

// HexDump writes data under a header in the canonical hex+ASCII layout.
func HexDump(w io.Writer, header string, data []byte) error {
	if _, err := fmt.Fprintf(w, "%s (%d bytes):\n", header, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	d := hex.Dumper(w)
	if _, err := d.Write(data); err != nil {
		return err
	}
	return d.Close()
}
