package render

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/KevoDB/firstfit/pkg/blocktable"
	"github.com/KevoDB/firstfit/pkg/common/log"
	"github.com/KevoDB/firstfit/pkg/config"
	"github.com/KevoDB/firstfit/pkg/simulator"
)

func scenarioTable(t *testing.T) *blocktable.BlockTable {
	t.Helper()
	table, err := blocktable.New([]int{100, 500, 200, 300, 600})
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return table
}

func TestWriteBlocks(t *testing.T) {
	table := scenarioTable(t)
	table.Allocate("P1", 212)

	var buf bytes.Buffer
	if err := WriteBlocks(&buf, table.Views()); err != nil {
		t.Fatalf("WriteBlocks failed: %v", err)
	}

	want := "\nMemory Blocks:\n" +
		"Block 1: Size: 100, Status: Free, Process: N/A\n" +
		"Block 2: Size: 500, Status: Allocated, Process: P1\n" +
		"Block 3: Size: 200, Status: Free, Process: N/A\n" +
		"Block 4: Size: 300, Status: Free, Process: N/A\n" +
		"Block 5: Size: 600, Status: Free, Process: N/A\n"
	if buf.String() != want {
		t.Errorf("unexpected listing:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteFragmentation(t *testing.T) {
	var buf bytes.Buffer
	WriteFragmentation(&buf, 1200)
	if buf.String() != "\nTotal External Fragmentation: 1,200 units\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWriteSummary(t *testing.T) {
	table := scenarioTable(t)
	table.Allocate("P1", 212)

	var buf bytes.Buffer
	WriteSummary(&buf, table)
	out := buf.String()
	if !strings.HasPrefix(out, "1/5 blocks in use, 1,200 of 1,700 units free, largest free block 600 [state ") {
		t.Errorf("unexpected summary %q", out)
	}
}

func TestBarWrite(t *testing.T) {
	table := scenarioTable(t)
	table.Allocate("P1", 212)

	var buf bytes.Buffer
	if err := (Bar{Width: 34}).Write(&buf, table.Views(), 1700); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := strings.Join([]string{
		"Memory Allocation Visualization",
		"|..|##########|....|......|............|",
		"|  |    P1    |Free| Free |    Free    |",
		"|  |   500    |200 | 300  |    600     |",
		"0" + strings.Repeat(" ", 28) + "1,700 units",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("unexpected bar:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestBarScalesToLargerBound(t *testing.T) {
	table, _ := blocktable.New([]int{50, 50})

	// declared total larger than the blocks leaves the tail undrawn
	var buf bytes.Buffer
	(Bar{Width: 20}).Write(&buf, table.Views(), 200)
	lines := strings.Split(buf.String(), "\n")
	if lines[1] != "|.....|.....|" {
		t.Errorf("unexpected strip for wide total: %q", lines[1])
	}
	if !strings.HasSuffix(lines[4], "200 units") {
		t.Errorf("axis should end at declared total: %q", lines[4])
	}

	// declared total smaller than the blocks scales to the blocks
	buf.Reset()
	(Bar{Width: 20}).Write(&buf, table.Views(), 10)
	lines = strings.Split(buf.String(), "\n")
	if lines[1] != "|..........|..........|" {
		t.Errorf("unexpected strip for narrow total: %q", lines[1])
	}
	if !strings.HasSuffix(lines[4], "100 units") {
		t.Errorf("axis should end at block sum: %q", lines[4])
	}
}

func TestBarTinyBlocksGetAColumn(t *testing.T) {
	table, _ := blocktable.New([]int{1, 1, 10000})
	var buf bytes.Buffer
	(Bar{Width: 10}).Write(&buf, table.Views(), 10002)

	strip := strings.Split(buf.String(), "\n")[1]
	segments := strings.Split(strings.Trim(strip, "|"), "|")
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %q", strip)
	}
	for i, seg := range segments {
		if len(seg) == 0 {
			t.Errorf("segment %d has no columns: %q", i, strip)
		}
	}
}

func TestBarHugeCapacities(t *testing.T) {
	table, err := blocktable.New([]int{math.MaxInt / 2, math.MaxInt / 2})
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	table.Allocate("P1", 1)

	var buf bytes.Buffer
	if err := (Bar{Width: 20}).Write(&buf, table.Views(), 1); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	lines := strings.Split(buf.String(), "\n")
	if lines[1] != "|##########|..........|" {
		t.Errorf("unexpected strip for huge blocks: %q", lines[1])
	}
	if !strings.HasSuffix(lines[4], " units") || strings.Contains(lines[4], "-") {
		t.Errorf("unexpected axis for huge blocks: %q", lines[4])
	}
}

func TestBarEmpty(t *testing.T) {
	var buf bytes.Buffer
	(Bar{Width: 10}).Write(&buf, nil, 0)
	if !strings.Contains(buf.String(), "(no blocks)") {
		t.Errorf("unexpected empty output %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed")
}

func TestRedrawer(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SetLayout(1700, []int{100, 500, 200, 300, 600})
	s, err := simulator.New(cfg, simulator.WithLogger(log.NewNopLogger()))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	var buf bytes.Buffer
	r := NewRedrawer(&buf, Bar{Width: 34}, nil)
	s.Subscribe(r)
	ctx := context.Background()

	s.Allocate(ctx, "P1", 212)
	if !strings.Contains(buf.String(), "|..|##########|") {
		t.Errorf("expected redraw after allocation, got:\n%s", buf.String())
	}
	buf.Reset()

	s.Allocate(ctx, "P2", 99999)
	if buf.Len() != 0 {
		t.Errorf("failed allocation should not redraw")
	}

	r.SetEnabled(false)
	if r.Enabled() {
		t.Errorf("expected redraw disabled")
	}
	s.Deallocate(ctx, "P1")
	if buf.Len() != 0 {
		t.Errorf("disabled redrawer should not draw")
	}

	r.SetEnabled(true)
	s.Allocate(ctx, "P3", 150)
	if !strings.Contains(buf.String(), "|..|..........|####|") {
		t.Errorf("expected P3 in block 3, got:\n%s", buf.String())
	}
}

func TestRedrawerLogsWriteFailure(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SetLayout(0, []int{10})
	s, _ := simulator.New(cfg, simulator.WithLogger(log.NewNopLogger()))

	var logBuf bytes.Buffer
	logger := log.NewStandardLogger(log.WithOutput(&logBuf))
	s.Subscribe(NewRedrawer(failingWriter{}, Bar{Width: 10}, logger))

	s.Allocate(context.Background(), "P1", 5)
	if !strings.Contains(logBuf.String(), "[ERROR] component=render redraw after allocated of block 1 failed: closed") {
		t.Errorf("expected logged redraw failure, got %q", logBuf.String())
	}
}
