package main

import (
	"fmt"
	"os"

	"hacktickets/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
