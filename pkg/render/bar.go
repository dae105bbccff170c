package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/KevoDB/firstfit/pkg/blocktable"
)

const (
	fillOccupied = '#'
	fillFree     = '.'
)

// Bar draws the address space as a horizontal strip, one segment per block,
// each segment as wide as its share of the scale.
type Bar struct {
	// Width is the number of columns the full scale spans
	Width int
}

// Write draws views scaled to totalMemory, or to the table's capacity if
// the blocks extend past it. Every block gets at least one column.
//
//	Memory Allocation Visualization
//	|..|##########|....|......|............|
//	|  |    P1    |Free| Free |    Free    |
//	|  |   500    |200 | 300  |    600     |
//	0                            1,700 units
func (b Bar) Write(w io.Writer, views []blocktable.BlockView, totalMemory int) error {
	scale := totalMemory
	if n := len(views); n > 0 {
		if end := views[n-1].Start + views[n-1].Capacity; end > scale {
			scale = end
		}
	}
	if scale <= 0 || len(views) == 0 {
		_, err := io.WriteString(w, "Memory Allocation Visualization\n(no blocks)\n")
		return err
	}

	widths := b.segmentWidths(views, scale)

	var strip, owners, sizes strings.Builder
	for i, v := range views {
		fill, label := fillFree, "Free"
		if v.Occupied {
			fill, label = fillOccupied, v.Owner
		}
		strip.WriteByte('|')
		strip.WriteString(strings.Repeat(string(fill), widths[i]))
		owners.WriteByte('|')
		owners.WriteString(center(label, widths[i]))
		sizes.WriteByte('|')
		sizes.WriteString(center(fmt.Sprint(v.Capacity), widths[i]))
	}
	strip.WriteByte('|')
	owners.WriteByte('|')
	sizes.WriteByte('|')

	lineWidth := strip.Len()
	right := humanize.Comma(int64(scale)) + " units"
	gap := lineWidth - 1 - len(right)
	if gap < 1 {
		gap = 1
	}
	axis := "0" + strings.Repeat(" ", gap) + right

	_, err := fmt.Fprintf(w, "Memory Allocation Visualization\n%s\n%s\n%s\n%s\n",
		strip.String(), owners.String(), sizes.String(), axis)
	return err
}

// segmentWidths rounds each block's end offset onto the column grid.
func (b Bar) segmentWidths(views []blocktable.BlockView, scale int) []int {
	width := b.Width
	if width < len(views) {
		width = len(views)
	}

	widths := make([]int, len(views))
	prev := 0
	for i, v := range views {
		// float math keeps the product in range for capacities near MaxInt
		end := int(math.Floor(float64(v.Start+v.Capacity)*float64(width)/float64(scale) + 0.5))
		if end <= prev {
			end = prev + 1
		}
		widths[i] = end - prev
		prev = end
	}
	return widths
}

// center pads s to width, or blanks it when it does not fit.
func center(s string, width int) string {
	if len(s) > width {
		return strings.Repeat(" ", width)
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}
