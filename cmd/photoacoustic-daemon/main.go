// Command photoacoustic-daemon runs the acquisition, processing-graph,
// and thermal-regulation core of a photoacoustic gas-sensing instrument.
package main

import (
	"log"
	"os"

	"github.com/sctg-development/photoacoustic-go/cmd"
	"github.com/sctg-development/photoacoustic-go/internal/conf"
)

func main() {
	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
