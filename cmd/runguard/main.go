// Command runguard executes commands on behalf of partially trusted
// callers, behind input validation, an executable allow-list, and a
// hash-chained audit log.
package main

import (
	"github.com/runguard/runguard/internal/cli"
	"github.com/runguard/runguard/internal/failtrap"
	"github.com/runguard/runguard/internal/logging"
)

func main() {
	logging.Init()

	trap := failtrap.Install()
	defer trap.Finish()
	defer trap.Recover()

	cli.Execute()
}
