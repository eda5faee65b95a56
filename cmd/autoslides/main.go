// Command autoslides exports marketing dashboards, converts them to slide
// decks with narrative summaries and publishes them to Google Drive.
package main

import (
	"fmt"
	"os"

	"github.com/spherical/autoslides/cmd/autoslides/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
