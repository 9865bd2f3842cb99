package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/iliyamo/facility-reservation/internal/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
