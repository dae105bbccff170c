package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/KevoDB/firstfit/pkg/blocktable"
	"github.com/KevoDB/firstfit/pkg/config"
	"github.com/KevoDB/firstfit/pkg/render"
	"github.com/KevoDB/firstfit/pkg/simulator"
)

const (
	choicePrompt  = "Enter your choice: "
	invalidChoice = "Invalid choice. Please try again."
	goodbye       = "Exiting the program. Goodbye!"
)

const menuText = `
Options:
1. Allocate Memory
2. Deallocate Memory
3. Display Memory
4. Show Fragmentation
5. Exit
`

const helpText = `
firstfit - a first-fit memory allocation simulator

Menu choices:
  1                       - Allocate memory (prompts for process ID and size)
  2                       - Deallocate memory (prompts for process ID)
  3                       - Display memory blocks
  4                       - Show total external fragmentation
  5                       - Exit

Commands:
  ALLOC pid size          - Allocate size units to process pid
  FREE pid                - Free the block held by process pid
  DISPLAY                 - Display memory blocks
  FRAG                    - Show total external fragmentation
  VIS                     - Draw the allocation bar

  .help                   - Show this help message
  .menu                   - Show the numbered menu
  .stats                  - Show session statistics
  .redraw on|off          - Redraw the bar after every change
  .save PATH              - Save the session layout as a JSON config
  .exit                   - Exit the program
`

// errQuit ends the loop from inside a nested prompt.
var errQuit = errors.New("quit")

// lineReader is the part of *readline.Instance the REPL needs
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

type repl struct {
	in       lineReader
	out      io.Writer
	session  *simulator.Session
	redrawer *render.Redrawer
	cfg      *config.Config
	bar      render.Bar
}

// readLine prompts and reads one trimmed line. EOF and an interrupt on an
// empty line both map to errQuit.
func readLine(in lineReader, prompt string) (string, error) {
	in.SetPrompt(prompt)
	for {
		line, err := in.Readline()
		if err != nil {
			if err == readline.ErrInterrupt && len(line) > 0 {
				continue
			}
			if err == readline.ErrInterrupt || err == io.EOF {
				return "", errQuit
			}
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}

// promptLayout asks for the total memory and the block sizes, retrying
// until each parses.
func promptLayout(in lineReader, out io.Writer) (int, []int, error) {
	var total int
	for {
		line, err := readLine(in, "Enter total memory size: ")
		if err != nil {
			return 0, nil, mapQuit(err)
		}
		n, err := config.ParseUnits(line)
		if err != nil {
			fmt.Fprintf(out, "Invalid memory size: %v. Please try again.\n", err)
			continue
		}
		total = n
		break
	}

	for {
		line, err := readLine(in, "Enter sizes of memory blocks separated by spaces: ")
		if err != nil {
			return 0, nil, mapQuit(err)
		}
		sizes, err := config.ParseBlockSizes(line)
		if err != nil {
			fmt.Fprintf(out, "Invalid block sizes: %v. Please try again.\n", err)
			continue
		}
		return total, sizes, nil
	}
}

func mapQuit(err error) error {
	if err == errQuit {
		return io.EOF
	}
	return err
}

func (r *repl) printMenu() {
	fmt.Fprint(r.out, menuText)
}

// loop reads commands until the user exits and returns the exit code.
func (r *repl) loop(ctx context.Context) int {
	for {
		line, err := readLine(r.in, choicePrompt)
		if err != nil {
			if err == errQuit {
				fmt.Fprintln(r.out, goodbye)
				return 0
			}
			fmt.Fprintf(r.out, "Error reading input: %s\n", err)
			return 1
		}
		if line == "" {
			continue
		}

		if err := r.dispatch(ctx, line); err != nil {
			if err == errQuit {
				fmt.Fprintln(r.out, goodbye)
				return 0
			}
			fmt.Fprintf(r.out, "Error: %s\n", err)
		}
	}
}

// dispatch runs one menu choice, named command or dot command.
func (r *repl) dispatch(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	cmd := strings.ToUpper(parts[0])

	if strings.HasPrefix(cmd, ".") {
		return r.dotCommand(strings.ToLower(cmd), parts[1:])
	}

	switch cmd {
	case "1":
		owner, err := readLine(r.in, "Enter Process ID: ")
		if err != nil {
			return err
		}
		size, err := r.readSize()
		if err != nil {
			return err
		}
		r.allocate(ctx, owner, size)

	case "2":
		owner, err := readLine(r.in, "Enter Process ID to deallocate: ")
		if err != nil {
			return err
		}
		r.deallocate(ctx, owner)

	case "3", "DISPLAY":
		return render.WriteBlocks(r.out, r.session.Views())

	case "4", "FRAG":
		return render.WriteFragmentation(r.out, r.session.Fragmentation(ctx))

	case "5", "EXIT", "QUIT":
		return errQuit

	case "ALLOC":
		if len(parts) != 3 {
			fmt.Fprintln(r.out, "Usage: ALLOC pid size")
			return nil
		}
		size, err := config.ParseUnits(parts[2])
		if err != nil {
			fmt.Fprintf(r.out, "Invalid size: %v\n", err)
			return nil
		}
		r.allocate(ctx, parts[1], size)

	case "FREE":
		if len(parts) != 2 {
			fmt.Fprintln(r.out, "Usage: FREE pid")
			return nil
		}
		r.deallocate(ctx, parts[1])

	case "VIS":
		return r.bar.Write(r.out, r.session.Views(), r.session.TotalMemory())

	default:
		fmt.Fprintln(r.out, invalidChoice)
	}
	return nil
}

// readSize prompts until a positive size is entered.
func (r *repl) readSize() (int, error) {
	for {
		line, err := readLine(r.in, "Enter size of memory required: ")
		if err != nil {
			return 0, err
		}
		size, err := config.ParseUnits(line)
		if err != nil {
			fmt.Fprintf(r.out, "Invalid size: %v. Please try again.\n", err)
			continue
		}
		return size, nil
	}
}

func (r *repl) allocate(ctx context.Context, owner string, size int) {
	_, err := r.session.Allocate(ctx, owner, size)
	switch {
	case err == nil:
		fmt.Fprintf(r.out, "Process %s allocated %d units.\n", owner, size)
	case errors.Is(err, blocktable.ErrAlreadyAllocated):
		held, _ := r.session.Table().OwnerOf(owner)
		fmt.Fprintf(r.out, "Process %s already holds block %d.\n", owner, held.Index+1)
	case errors.Is(err, blocktable.ErrInvalidRequest):
		fmt.Fprintln(r.out, "A process ID and a positive size are required.")
	default:
		fmt.Fprintf(r.out, "Process %s could not be allocated %d units.\n", owner, size)
	}
}

func (r *repl) deallocate(ctx context.Context, owner string) {
	if _, err := r.session.Deallocate(ctx, owner); err != nil {
		fmt.Fprintf(r.out, "No memory block found for Process %s.\n", owner)
		return
	}
	fmt.Fprintf(r.out, "Process %s deallocated.\n", owner)
}

func (r *repl) dotCommand(cmd string, args []string) error {
	switch cmd {
	case ".help":
		fmt.Fprint(r.out, helpText)

	case ".menu":
		r.printMenu()

	case ".stats":
		render.WriteSummary(r.out, r.session.Table())
		r.printStats()

	case ".redraw":
		if len(args) != 1 {
			fmt.Fprintf(r.out, "Redraw is %s\n", onOff(r.redrawer.Enabled()))
			return nil
		}
		switch strings.ToLower(args[0]) {
		case "on":
			r.redrawer.SetEnabled(true)
		case "off":
			r.redrawer.SetEnabled(false)
		default:
			fmt.Fprintln(r.out, "Usage: .redraw on|off")
			return nil
		}
		r.cfg.Update(func(c *config.Config) {
			c.AutoRedraw = r.redrawer.Enabled()
		})
		fmt.Fprintf(r.out, "Redraw is %s\n", onOff(r.redrawer.Enabled()))

	case ".save":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "Error: Missing path argument")
			return nil
		}
		if err := r.cfg.Save(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Saved layout to %s\n", args[0])

	case ".exit":
		return errQuit

	default:
		fmt.Fprintln(r.out, invalidChoice)
	}
	return nil
}

func (r *repl) printStats() {
	stats := r.session.Stats()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(r.out, "Session Statistics:")
	for _, k := range keys {
		fmt.Fprintf(r.out, "  %s: %v\n", k, stats[k])
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
