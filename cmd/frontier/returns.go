package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/modules/sink"
)

type returnsCmd struct {
	cfg *config.Config

	prices string
	out    string
}

func (*returnsCmd) Name() string     { return "returns" }
func (*returnsCmd) Synopsis() string { return "convert a closing price table into a returns file" }
func (*returnsCmd) Usage() string {
	return `frontier returns -prices prices.csv [-out returns.csv]

  Reads closing prices (date column then one column per asset, empty cells
  are missing prices) and writes simple daily returns. Missing prices are
  filled forward, then backward. Writes to stdout when -out is "-".
`
}

func (c *returnsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.prices, "prices", "", "closing price CSV")
	f.StringVar(&c.out, "out", c.cfg.ReturnsFile, `returns CSV to write, "-" for stdout`)
}

func (c *returnsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.prices == "" || f.NArg() > 0 {
		return usageError(fmt.Errorf("%w: -prices is required and no arguments are accepted", domain.ErrInvalidParameter))
	}

	log := newLogger(c.cfg).With().Str("command", "returns").Logger()

	in, err := os.Open(c.prices)
	if err != nil {
		return fail(err)
	}
	defer in.Close()

	table, err := returns.LoadPrices(in)
	if err != nil {
		return fail(fmt.Errorf("failed to read prices: %w", err))
	}
	if filled := table.FillMissing(); filled > 0 {
		log.Info().Int("filled", filled).Msg("Filled missing prices")
	}

	matrix, err := returns.FromPrices(table)
	if err != nil {
		return fail(err)
	}

	if c.out == "-" {
		err = returns.WriteCSV(os.Stdout, matrix)
	} else {
		err = sink.WriteFileAtomic(c.out, func(f *os.File) error {
			return returns.WriteCSV(f, matrix)
		})
	}
	if err != nil {
		return fail(fmt.Errorf("failed to write returns: %w", err))
	}

	event := log.Info().
		Int("assets", matrix.Assets()).
		Int("periods", matrix.Rows()).
		Str("out", c.out)
	if dates := matrix.Dates(); len(dates) > 0 {
		event = event.Str("from", dates[0]).Str("to", dates[len(dates)-1])
	}
	event.Msg("Returns written")
	return subcommands.ExitSuccess
}
