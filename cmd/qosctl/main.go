// Command qosctl sets and inspects per-volume I/O limits and follows their
// changes on running hosts.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
)

func newCommander(rt *runtime, topLevel *flag.FlagSet) *subcommands.Commander {
	cdr := subcommands.NewCommander(topLevel, "qosctl")
	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(cdr.FlagsCommand(), "")
	cdr.Register(cdr.CommandsCommand(), "")
	cdr.Register(newIOPSCmd(rt), "limits")
	cdr.Register(newBPSCmd(rt), "limits")
	cdr.Register(&getCmd{rt: rt}, "limits")
	cdr.Register(&watchCmd{rt: rt}, "")
	return cdr
}

func main() {
	rt := newRuntime()
	flag.StringVar(&rt.configPath, "config", "", "path to a TOML config file")
	cdr := newCommander(rt, flag.CommandLine)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := cdr.Execute(ctx)
	stop()
	if err := rt.Close(); err != nil {
		rt.log().Error("close backends", "error", err)
	}
	os.Exit(int(status))
}
