package main

import (
	"os"

	"github.com/vehicleplus/sums/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
