package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

var serverAddr = flag.String("server", "127.0.0.1:8445", "osvrouterd API address")

func main() {
	flag.Parse()

	client := newClient(*serverAddr)

	// With arguments, run one command and exit; otherwise start the shell.
	if flag.NArg() > 0 {
		if err := execute(client, strings.Join(flag.Args(), " ")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cli := NewCLI(client)
	if err := cli.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
