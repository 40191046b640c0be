// Command cfgtree loads configuration documents into a nested-set tree and
// queries it.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
