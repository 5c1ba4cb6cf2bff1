package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
	"github.com/vnykmshr/volqos/pkg/volume"
)

type getCmd struct {
	rt *runtime

	asJSON bool
}

func (*getCmd) Name() string     { return "get" }
func (*getCmd) Synopsis() string { return "print the stored limits of volumes" }
func (*getCmd) Usage() string    { return "get [-json] <volume>...\n" }

func (g *getCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&g.asJSON, "json", false, "print JSON")
}

func (g *getCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(g.rt.out, "no volume provided.")
		return subcommands.ExitUsageError
	}

	coord, err := g.rt.coordinator(ctx)
	if err != nil {
		g.rt.log().Error("open backends", "error", err)
		return subcommands.ExitFailure
	}

	status := subcommands.ExitSuccess
	for _, name := range f.Args() {
		l, err := coord.Get(ctx, name)
		if errors.Is(err, qoserrors.ErrNotFound) {
			fmt.Fprintf(g.rt.out, "%s: unlimited\n", name)
			continue
		}
		if err != nil {
			fmt.Fprintf(g.rt.out, "%s: %v\n", name, err)
			status = subcommands.ExitFailure
			continue
		}

		if !g.asJSON {
			fmt.Fprintf(g.rt.out, "%s: %s\n", name, l)
			continue
		}
		data, err := json.Marshal(struct {
			Volume string        `json:"volume"`
			Limits volume.Limits `json:"limits"`
		}{name, l})
		if err != nil {
			fmt.Fprintln(g.rt.out, err)
			return subcommands.ExitFailure
		}
		fmt.Fprintln(g.rt.out, string(data))
	}
	return status
}
