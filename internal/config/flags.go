package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
)

// parseFlags overlays cfg with the command-line flags it knows about:
//
//	-m string   auth mode (authenticated|open)
//	-u string   update mode (always|missing|never)
//	-w string   notification webhook url
//	-l string   log level
//	-j string   server jar path
//
// Other arguments are ignored so the same command line can carry flags for
// other components.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-m", "-u", "-w", "-l", "-j"})

	fs := flag.NewFlagSet("entrypoint", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.AuthMode, "m", cfg.AuthMode, "auth mode (authenticated|open)")
	fs.StringVar(&cfg.UpdateMode, "u", cfg.UpdateMode, "update mode (always|missing|never)")
	fs.StringVar(&cfg.WebhookURL, "w", cfg.WebhookURL, "notification webhook url")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug|info|warn|error)")
	fs.StringVar(&cfg.ServerJar, "j", cfg.ServerJar, "server jar path")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfig, err)
	}
	return nil
}
