// Package render draws block table state as text. It only reads views and
// never mutates a table.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/KevoDB/firstfit/pkg/blocktable"
)

// WriteBlocks lists every block, numbered from 1.
func WriteBlocks(w io.Writer, views []blocktable.BlockView) error {
	var b strings.Builder
	b.WriteString("\nMemory Blocks:\n")
	for _, v := range views {
		status, owner := "Free", "N/A"
		if v.Occupied {
			status, owner = "Allocated", v.Owner
		}
		fmt.Fprintf(&b, "Block %d: Size: %d, Status: %s, Process: %s\n", v.Index+1, v.Capacity, status, owner)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFragmentation reports the total free space across all free blocks.
func WriteFragmentation(w io.Writer, freeUnits int) error {
	_, err := fmt.Fprintf(w, "\nTotal External Fragmentation: %s units\n", humanize.Comma(int64(freeUnits)))
	return err
}

// WriteSummary prints a one-line occupancy summary followed by the state
// fingerprint.
func WriteSummary(w io.Writer, table *blocktable.BlockTable) error {
	_, err := fmt.Fprintf(w, "%d/%d blocks in use, %s of %s units free, largest free block %s [state %016x]\n",
		table.Occupied(), table.Len(),
		humanize.Comma(int64(table.Fragmentation())),
		humanize.Comma(int64(table.TotalCapacity())),
		humanize.Comma(int64(table.LargestFree())),
		table.Fingerprint(),
	)
	return err
}
