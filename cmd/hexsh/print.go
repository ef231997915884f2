package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hexsh/hexsh/pkg/lib/jobs"
)

// printJobsTable renders the job table for the jobs builtin.
func printJobsTable(w io.Writer, entries []*jobs.Entry) {
	headers := [4]string{"JOB", "STATE", "EXIT", "COMMAND"}

	rows := make([][4]string, 0, len(entries))
	for _, e := range entries {
		st := e.Handle.Status()
		exit := ""
		if st.ExitCode != nil {
			exit = strconv.Itoa(*st.ExitCode)
		}
		rows = append(rows, [4]string{
			"%" + strconv.Itoa(e.ID),
			st.State.String(),
			exit,
			e.Handle.Command().String(),
		})
	}

	var widths [4]int
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = maxInt(widths[i], len(cell))
		}
	}

	sep := fmt.Sprintf("+-%s-+-%s-+-%s-+-%s-+\n",
		strings.Repeat("-", widths[0]), strings.Repeat("-", widths[1]),
		strings.Repeat("-", widths[2]), strings.Repeat("-", widths[3]))

	row := func(r [4]string) {
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			pad(r[0], widths[0]), pad(r[1], widths[1]),
			pad(r[2], widths[2]), pad(r[3], widths[3]))
	}

	fmt.Fprint(w, sep)
	row(headers)
	fmt.Fprint(w, sep)
	for _, r := range rows {
		row(r)
	}
	fmt.Fprint(w, sep)
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
