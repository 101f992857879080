package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// An interrupted run already reported its partial summary; only
		// real failures are worth a final line on stderr.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "shuttle:", err)
		}
		os.Exit(1)
	}
}
