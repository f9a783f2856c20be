// Command classrepl is an interactive JavaScript prompt with the example
// native classes exposed.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := runREPL(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
