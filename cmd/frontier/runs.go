package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/modules/runs"
)

type runsCmd struct {
	cfg   *config.Config
	limit int
}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list stored simulation runs" }
func (*runsCmd) Usage() string {
	return `frontier runs [-limit n]

  Lists stored runs, newest first.
`
}

func (c *runsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", runs.DefaultListLimit, "maximum number of runs")
}

func (c *runsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := newLogger(c.cfg)

	db, repo, err := openStore(c.cfg, log)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	list, err := repo.List(ctx, c.limit)
	if err != nil {
		return fail(err)
	}
	printRuns(os.Stdout, list)
	return subcommands.ExitSuccess
}

func printRuns(w io.Writer, list []runs.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tCREATED\tTRIALS\tBEST SHARPE\tMIN VOL\tASSETS")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			r.Trials,
			optional(r.BestSharpe),
			optional(r.MinVolatility),
			strings.Join(r.Labels, ","))
	}
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
