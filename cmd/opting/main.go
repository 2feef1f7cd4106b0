// opting browses company compliance documents on the dashboard drive.
package main

import (
	"os"

	"github.com/fedesuarez16/opting-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
