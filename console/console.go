package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Command is one operator command. Implementations hold whatever state
// they need; the console never inspects them beyond this interface.
type Command interface {
	Name() string
	Description() string
	Execute(out io.Writer, args []string) error
}

// Console reads lines, matches the first word against registered commands,
// and hands the rest to the match as arguments.
type Console struct {
	prompt        string
	caseSensitive bool
	in            io.Reader
	out           io.Writer
	commands      map[string]Command
	names         []string
	unknown       func(out io.Writer, name string)
}

// New returns a console on stdin/stdout with the default "> " prompt and
// case-insensitive matching.
func New() *Console {
	return &Console{
		prompt:   "> ",
		in:       os.Stdin,
		out:      os.Stdout,
		commands: make(map[string]Command),
		unknown: func(out io.Writer, name string) {
			fmt.Fprintf(out, "Unknown command '%s'.\n", name)
		},
	}
}

// Prompt sets the string printed before each read.
func (c *Console) Prompt(p string) *Console {
	c.prompt = p
	return c
}

// CaseSensitive controls whether command names match exactly.
func (c *Console) CaseSensitive(v bool) *Console {
	c.caseSensitive = v
	return c
}

// Input replaces the reader, for tests and scripted sessions.
func (c *Console) Input(r io.Reader) *Console {
	c.in = r
	return c
}

// Output replaces the writer.
func (c *Console) Output(w io.Writer) *Console {
	c.out = w
	return c
}

// Command registers cmd. Registration order is the order help lists them.
func (c *Console) Command(cmd Command) *Console {
	key := cmd.Name()
	if !c.caseSensitive {
		key = strings.ToLower(key)
	}
	if _, dup := c.commands[key]; !dup {
		c.names = append(c.names, key)
	}
	c.commands[key] = cmd
	return c
}

// UnknownCallback replaces the line printed for unmatched commands.
func (c *Console) UnknownCallback(fn func(out io.Writer, name string)) *Console {
	c.unknown = fn
	return c
}

// Run dispatches lines until the input is exhausted or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprint(c.out, c.prompt)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			c.dispatch(line)
			fmt.Fprint(c.out, c.prompt)
		}
	}
}

func (c *Console) dispatch(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	name := fields[0]
	if !c.caseSensitive {
		name = strings.ToLower(name)
	}

	if name == "help" {
		c.printHelp()
		return
	}

	cmd, ok := c.commands[name]
	if !ok {
		c.unknown(c.out, fields[0])
		return
	}
	if err := cmd.Execute(c.out, fields[1:]); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

func (c *Console) printHelp() {
	for _, name := range c.names {
		fmt.Fprintf(c.out, "%s - %s\n", c.commands[name].Name(), c.commands[name].Description())
	}
	fmt.Fprintln(c.out, "help - Lists available commands")
}

// ClearCommand clears the terminal with an ANSI escape sequence.
type ClearCommand struct{}

func (ClearCommand) Name() string        { return "clear" }
func (ClearCommand) Description() string { return "Clears the console" }

func (ClearCommand) Execute(out io.Writer, _ []string) error {
	_, err := fmt.Fprint(out, "\x1b[2J\x1b[H")
	return err
}
