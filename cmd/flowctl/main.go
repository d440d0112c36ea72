// flowctl validates and activates conditional surveys.
package main

import (
	"os"

	"github.com/paulexconde/surveyflow/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
