package main

import (
	"errors"
	"fmt"
	"os"
)

// exitCodeError carries a child's exit code through cobra so the hexsh
// process can mirror it exactly.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func main() {
	root := NewRootCmd()

	if err := root.Execute(); err != nil {
		var exit *exitCodeError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
