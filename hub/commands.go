package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// RelayCommand is the operator console's "relay" command. The registry it
// operates on is injected at construction.
type RelayCommand struct {
	Registry *RelayRegistry
}

func (RelayCommand) Name() string        { return "relay" }
func (RelayCommand) Description() string { return "Add / remove relay servers" }

// Execute handles "relay add <addr>", "relay remove <addr>" and
// "relay list". Failures are reported as a single line of text.
func (c RelayCommand) Execute(out io.Writer, args []string) error {
	switch {
	case len(args) == 1 && args[0] == "add":
		fmt.Fprintln(out, "Usage: relay add <ipaddr>")

	case len(args) == 2 && args[0] == "add":
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		switch err := c.Registry.Register(ctx, args[1]); {
		case errors.Is(err, ErrAddressParse):
			fmt.Fprintf(out, "Failed to parse address: %s\n", args[1])
		case err != nil:
			fmt.Fprintf(out, "Failed to add relay: %v\n", err)
		default:
			fmt.Fprintln(out, "Relay added successfully.")
		}

	case len(args) == 2 && args[0] == "remove":
		if c.Registry.Remove(args[1]) {
			fmt.Fprintln(out, "Relay removed.")
		} else {
			fmt.Fprintf(out, "No relay registered at %s.\n", args[1])
		}

	case len(args) == 1 && args[0] == "list":
		addrs := c.Registry.List()
		for i, addr := range addrs {
			fmt.Fprintf(out, "%d) %s\n", i+1, addr)
		}
		if len(addrs) == 0 {
			fmt.Fprintln(out, "There are no relays connected.")
		}

	default:
		fmt.Fprintln(out, "Usage: relay <op> ...args")
	}
	return nil
}
