package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm writes question with a [y/N] suffix and reads one line from reader.
// Only "y" or "yes" (any case) accept; empty input, EOF and read errors decline.
func confirm(writer io.Writer, reader io.Reader, question string) bool {
	fmt.Fprintf(writer, "? %s [y/N] ", question)

	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
