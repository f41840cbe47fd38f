package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	// Interrupts already terminated the command; the signal is the message.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "clipforge:", err)
	}
	os.Exit(1)
}
