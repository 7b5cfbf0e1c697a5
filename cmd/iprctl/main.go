package main

import (
	"os"

	iprctlcmd "github.com/cloudprefix/ipranges/pkg/iprctl/cmd"
)

func main() {
	root := iprctlcmd.NewRootCommand(iprctlcmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
