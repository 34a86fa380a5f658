package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
)

type CLI struct {
	client *client
	rl     *readline.Instance
}

func NewCLI(client *client) *CLI {
	return &CLI{client: client}
}

func (c *CLI) Run() error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "osvrouter# ",
		HistoryFile:     os.ExpandEnv("$HOME/.osvrouterctl_history"),
		AutoComplete:    buildCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer c.rl.Close()

	for {
		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := execute(c.client, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func buildCompleter() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("divert"),
		readline.PcItem("no",
			readline.PcItem("divert"),
		),
		readline.PcItem("show",
			readline.PcItem("diversions"),
			readline.PcItem("mappings"),
		),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func execute(c *client, line string) error {
	tokens := strings.Fields(line)
	switch tokens[0] {
	case "divert":
		if len(tokens) < 2 {
			return fmt.Errorf("usage: divert <protocol[,protocol...]> from <interface> as <host-if-name>")
		}
		rec, err := c.createDiversion(strings.Join(tokens[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("diverting %s on %s via %s\n", rec.Protocols, rec.Interface, rec.HostIfName)
		return nil

	case "no":
		if len(tokens) != 3 || tokens[1] != "divert" {
			return fmt.Errorf("usage: no divert <interface>")
		}
		return c.deleteDiversion(tokens[2])

	case "show":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: show diversions|mappings")
		}
		switch tokens[1] {
		case "diversions":
			return showDiversions(c)
		case "mappings":
			return showMappings(c)
		}
		return fmt.Errorf("unknown show target %q", tokens[1])

	case "help":
		fmt.Println("divert <protocol[,protocol...]> from <interface> as <host-if-name>")
		fmt.Println("no divert <interface>")
		fmt.Println("show diversions")
		fmt.Println("show mappings")
		fmt.Println("exit")
		return nil
	}
	return fmt.Errorf("unknown command %q", tokens[0])
}

func showDiversions(c *client) error {
	diversions, err := c.listDiversions()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "INTERFACE\tHOST IF\tPROTOCOLS")
	for _, d := range diversions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Interface, d.HostIfName, d.Protocols)
	}
	return w.Flush()
}

func showMappings(c *client) error {
	mappings, err := c.listMappings()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "FASTPATH\tSHADOW\tPROTOCOLS")
	for _, m := range mappings {
		fmt.Fprintf(w, "%d\t%d\t%s\n", m.Fastpath, m.Shadow, m.Protocols)
	}
	return w.Flush()
}
