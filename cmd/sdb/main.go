package main

import (
	"os"

	"github.com/TURING-V2/serenity/cmd/sdb/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
