// Command tabauth inspects and drives tab sessions against a durable tier.
//
// "tabauth shell" behaves like one dashboard tab; running it in two terminals against the
// same Redis shows account switching across tabs. The other subcommands operate on the
// shared registry directly.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
