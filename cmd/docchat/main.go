package main

import (
	"fmt"
	"os"

	"github.com/m4xw311/docchat/tools/mcp"
)

func main() {
	mcp.ClientVersion = version
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}
