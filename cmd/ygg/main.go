// Command ygg is the Yggdrasil orchestrator process. It wires the JSON-configured stores, watchers, and
// realm factories into a Core and either runs it forever (daemon) or
// drives a single project document through one lifecycle pass
// (run-doc), grounded on the teacher's flowctl-go/main.go and
// flow-ingester/main.go cmdServe.Execute pattern: a go-flags parser
// with one struct per subcommand, logging initialized before any
// other work, and a package-level exit code rather than os.Exit
// scattered through business logic.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/ops"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/session"
)

// version is overridden at build time via -ldflags.
var version = "dev"

type options struct {
	Dev       bool   `long:"dev" description:"Run in development mode: dev_*.json config overlay, debug logging, mock HPC manager"`
	Version   bool   `long:"version" description:"Print version and exit"`
	ConfigDir string `long:"config-dir" default:"./config" description:"Directory holding Yggdrasil's JSON configuration files"`
	LogDir    string `long:"log-dir" default:"./logs" description:"Directory to write the per-run log file into"`

	Daemon cmdDaemon `command:"daemon" description:"Run watchers forever, driving project lifecycles as events arrive"`
	RunDoc cmdRunDoc `command:"run-doc" description:"Fetch one project document and run its lifecycle exactly once"`
}

var opts options

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses args and dispatches to the matched subcommand's Execute,
// returning the process exit code per : 0 on normal completion, 2
// on an argument error, and 0 (no args) when help is printed instead
// of running anything.
func run(args []string) int {
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.SubcommandsOptional = true

	if len(args) == 0 {
		parser.WriteHelp(os.Stdout)
		return 0
	}

	// ParseArgs also invokes the matched subcommand's Execute as part of
	// parsing; an error surfacing here is either a genuine argument
	// error (*flags.Error) or whatever Execute returned.
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return 0
			}
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		log.WithError(err).Error("yggdrasil: exiting on error")
		return 1
	}

	if opts.Version {
		fmt.Printf("yggdrasil %s\n", version)
		return 0
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stdout)
		return 0
	}

	return 0
}

// cmdDaemon implements `ygg [--dev] daemon`.
type cmdDaemon struct{}

func (cmdDaemon) Execute(_ []string) error {
	closer, err := bootstrap(false)
	if closer != nil {
		defer closer.Close()
	}
	if err != nil {
		return err
	}

	w, err := wireUp(cfgFromBootstrap, opts.Dev)
	if err != nil {
		log.WithError(err).Error("daemon: failed to wire components")
		return err
	}
	defer w.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("daemon: starting")
	if err := w.Core.Start(ctx); err != nil {
		log.WithError(err).Warn("daemon: watcher set exited with error")
	}
	log.Info("daemon: stopped")
	return nil
}

// cmdRunDoc implements `ygg [--dev] run-doc <doc_id> [-m]`.
type cmdRunDoc struct {
	ManualSubmit bool `short:"m" long:"manual-submit" description:"Set the manual-submit session flag for this run"`
	Args         struct {
		DocID string `positional-arg-name:"doc_id" required:"yes"`
	} `positional-args:"yes"`
}

func (c cmdRunDoc) Execute(_ []string) error {
	closer, err := bootstrap(c.ManualSubmit)
	if closer != nil {
		defer closer.Close()
	}
	if err != nil {
		return err
	}

	w, err := wireUp(cfgFromBootstrap, opts.Dev)
	if err != nil {
		log.WithError(err).Error("run-doc: failed to wire components")
		return err
	}
	defer w.Close()

	return w.Core.RunOnce(context.Background(), c.Args.DocID)
}

// cfgFromBootstrap is set by bootstrap before Execute wires the rest
// of the process; daemon and run-doc share one assembly path.
var cfgFromBootstrap *wireConfig

// bootstrap initializes the process-wide Session and logging, then
// loads the wire configuration. A config-parse failure or an
// inability to open the log directory are the only two conditions
// allowed to abort the process outright.
func bootstrap(manualSubmit bool) (interface{ Close() error }, error) {
	if err := session.Default().Init(opts.Dev, manualSubmit); err != nil {
		log.WithError(err).Warn("bootstrap: session already initialized")
	}

	closer, err := ops.InitLogging(opts.LogDir, opts.Dev)
	if err != nil {
		return nil, fmt.Errorf("opening log directory: %w", err)
	}

	cfg, err := loadWireConfig(opts.Dev, opts.ConfigDir)
	if err != nil {
		return closer, fmt.Errorf("loading configuration: %w", err)
	}
	cfgFromBootstrap = cfg

	log.WithFields(log.Fields{"dev_mode": opts.Dev, "version": version}).Info("yggdrasil starting")
	return closer, nil
}
