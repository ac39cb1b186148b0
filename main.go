// Package main is the entry point for vdecapture, which captures virtual
// network traffic in pcap format.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/vdecapture/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
