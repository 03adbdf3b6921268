// Package main provides indexctl, the maintenance CLI of the CRIS indexing pipeline.
package main

import (
	"os"
)

func main() {
	root, a := newRootCmd()
	err := root.Execute()
	a.shutdown()
	if err != nil {
		os.Exit(1)
	}
}
