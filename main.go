// The main package for the fishing-reports executable.
package main

import (
	"github.com/StevenGall/delavan-lake-fishing-reports/cmd"
)

func main() {
	cmd.Execute()
}
