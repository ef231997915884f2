package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hexsh/hexsh/pkg/lib/childio"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

// newProbeCmd is the child half of the topology: run under a six-stream
// parent it reports every stream it was handed, announces itself on stddbg,
// echoes stddati to stddato and consumes stdin to its EOF. The quickest way
// to see the full wiring end to end is
//
//	hexsh run --dati-file in.bin --dato-file out.bin -- hexsh probe
func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report the six streams handed down by a hexsh parent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			streams, err := childio.Resolve()
			if err != nil {
				return fmt.Errorf("not spawned by hexsh: %w", err)
			}

			for _, k := range stream.Kinds() {
				fmt.Printf("%-7s slot=%d %s %s\n", k, k.Slot(), k.Direction(), k.Payload())
			}
			fmt.Fprintln(streams.Debug(), "probe: streams resolved")

			echoed, err := io.Copy(streams.DataOut(), streams.DataIn())
			if err != nil {
				return fmt.Errorf("echoing stddati to stddato: %w", err)
			}
			fmt.Printf("probe: echoed %d bytes to stddato\n", echoed)

			read, err := io.Copy(io.Discard, os.Stdin)
			if err != nil {
				return err
			}
			fmt.Printf("probe: stdin delivered %d bytes before EOF\n", read)
			return nil
		},
	}
}
