// Command cruscan validates ALICE CRU raw-data streams against the RDH
// and ITS/ALPIDE invariants, or filters/renders them, per a single
// argv-derived configuration (internal/config).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alice-daq/cruscan/internal/config"
	"github.com/alice-daq/cruscan/internal/logging"
	"github.com/alice-daq/cruscan/internal/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	eff, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return int(pipeline.ExitStartupError)
	}

	logger := logging.New(eff.LogLevel, logging.Text, stdout, stderr)
	logging.SetDefault(logger)

	res, err := pipeline.Run(eff, logger)
	if err != nil {
		logger.Error(err.Error())
		if res.Code == pipeline.ExitSuccess {
			return int(pipeline.ExitProcessError)
		}
	}
	return int(res.Code)
}
