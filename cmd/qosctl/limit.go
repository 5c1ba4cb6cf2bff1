package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
	"github.com/vnykmshr/volqos/pkg/qos"
	"github.com/vnykmshr/volqos/pkg/volume"
)

// limitCmd sets or clears one dimension of a volume's limits.
type limitCmd struct {
	rt  *runtime
	dim qos.Dimension

	volume string
	burst  string
	avg    string
	opType string
	clear  bool
}

func newIOPSCmd(rt *runtime) *limitCmd { return &limitCmd{rt: rt, dim: qos.IOPS} }
func newBPSCmd(rt *runtime) *limitCmd  { return &limitCmd{rt: rt, dim: qos.BPS} }

func (c *limitCmd) Name() string { return string(c.dim) }

func (c *limitCmd) Synopsis() string {
	if c.dim == qos.BPS {
		return "set or clear the bytes-per-second limit of a volume"
	}
	return "set or clear the operations-per-second limit of a volume"
}

func (c *limitCmd) Usage() string {
	unit := "operations"
	if c.dim == qos.BPS {
		unit = "bytes, with an optional B/K/M/G/T suffix"
	}
	return fmt.Sprintf(`%s -volume <name> [-burst N] [-avg N] [-type all|read|write]
%s -volume <name> -clear
  Values are %s. Omitted values keep their stored setting.
`, c.dim, c.dim, unit)
}

func (c *limitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.volume, "volume", "", "volume name")
	f.StringVar(&c.burst, "burst", "", "burst limit")
	f.StringVar(&c.avg, "avg", "", "average limit")
	f.StringVar(&c.opType, "type", "", "requests subject to the limit: all, read or write")
	f.BoolVar(&c.clear, "clear", false, "disable this limit")
}

func (c *limitCmd) parse(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	if c.dim == qos.BPS {
		return parseSize(s)
	}
	return parseCount(s)
}

// request builds the set request from the flags.
func (c *limitCmd) request() (volume.Limits, error) {
	var l volume.Limits
	burst, err := c.parse(c.burst)
	if err != nil {
		return l, fmt.Errorf("-burst: %w", err)
	}
	avg, err := c.parse(c.avg)
	if err != nil {
		return l, fmt.Errorf("-avg: %w", err)
	}
	if c.opType != "" {
		t, err := volume.ParseOpType(c.opType)
		if err != nil {
			return l, err
		}
		l.Type = t
	}
	if burst == 0 && avg == 0 && l.Type == "" {
		return l, fmt.Errorf("nothing to set: give -burst, -avg, -type or -clear")
	}

	switch c.dim {
	case qos.IOPS:
		l.IOPSBurst, l.IOPSAvg = burst, avg
	case qos.BPS:
		l.BPSBurst, l.BPSAvg = burst, avg
	}
	return l, nil
}

func (c *limitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.volume == "" {
		c.volume = f.Arg(0)
	}
	if c.volume == "" {
		fmt.Fprintln(c.rt.out, "no volume provided.")
		return subcommands.ExitUsageError
	}

	var req volume.Limits
	if !c.clear {
		var err error
		if req, err = c.request(); err != nil {
			fmt.Fprintln(c.rt.out, err)
			return subcommands.ExitUsageError
		}
	}

	coord, err := c.rt.coordinator(ctx)
	if err != nil {
		c.rt.log().Error("open backends", "error", err)
		return subcommands.ExitFailure
	}

	var got volume.Limits
	if c.clear {
		got, err = coord.Clear(ctx, c.volume, c.dim)
	} else {
		got, err = coord.Set(ctx, c.volume, req)
	}
	if err != nil {
		fmt.Fprintln(c.rt.out, err)
		if qoserrors.IsRetryable(err) {
			fmt.Fprintln(c.rt.out, "the volume is busy; try again.")
		}
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.rt.out, "%s: %s\n", c.volume, got)
	return subcommands.ExitSuccess
}
