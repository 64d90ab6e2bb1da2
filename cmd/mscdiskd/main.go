// Command mscdiskd runs a USB Mass Storage Class device over the FIFO HAL,
// backed by an in-memory or file-backed disk image.
package main

import (
	"fmt"
	"os"

	"usbmsc/cmd/mscdiskd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
