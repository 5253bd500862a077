// Command odb reads objects from git repositories.
package main

import (
	"os"

	"github.com/go-git/go-billy/v5/osfs"
)

func main() {
	if err := newRootCommand(osfs.New("/")).Execute(); err != nil {
		os.Exit(1)
	}
}
