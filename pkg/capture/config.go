package capture

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/montaglue/racy/internal/codec"
)

// DefaultSpillThreshold is the per-goroutine buffer size above which a
// spill to the sink is triggered.
const DefaultSpillThreshold = 100

// Options configures capture. All fields can be set through RACY_*
// environment variables, so an instrumented binary needs no flags.
type Options struct {
	// Path is the sink file. Defaults to the log file in the OS temp dir.
	Path string `envconfig:"PATH"`
	// SpillThreshold bounds per-goroutine buffered events.
	SpillThreshold int `envconfig:"SPILL_THRESHOLD"`
	// Quiet suppresses diagnostic output for spill and flush failures.
	Quiet bool `envconfig:"QUIET" default:"false"`
}

// loadOptions reads Options from the environment.
func loadOptions() (Options, error) {
	var opts Options
	if err := envconfig.Process("RACY", &opts); err != nil {
		return opts, fmt.Errorf("capture: load config: %w", err)
	}
	return opts, nil
}

// normalize fills in defaults for unset fields.
func normalize(opts Options) Options {
	if opts.Path == "" {
		opts.Path = codec.DefaultPath()
	}
	if opts.SpillThreshold <= 0 {
		opts.SpillThreshold = DefaultSpillThreshold
	}
	return opts
}
