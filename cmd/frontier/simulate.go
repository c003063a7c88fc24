package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/aristath/frontier/internal/clients/s3"
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/modules/simulation"
	"github.com/aristath/frontier/internal/services"
)

type simulateCmd struct {
	cfg *config.Config

	returns   string
	trials    int
	rf        float64
	annualize bool
	periods   float64
	seed      uint64
	out       string
	format    string
	chart     string
	assets    string
	store     bool
	upload    bool
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "sample random portfolios from a returns file" }
func (*simulateCmd) Usage() string {
	return `frontier simulate [flags] [returns.csv [N [rf [annualize]]]]

  Samples N random long-only portfolios and writes one row per portfolio
  (sharpe, ret, vol, weights) to -out. annualize is 0 or 1.
  Positional arguments override the matching flags.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.returns, "returns", c.cfg.ReturnsFile, "returns CSV (date column then one column per asset)")
	f.IntVar(&c.trials, "n", c.cfg.Trials, "number of portfolios")
	f.Float64Var(&c.rf, "rf", c.cfg.RiskFreeRate, "annual risk-free rate")
	f.BoolVar(&c.annualize, "annualize", c.cfg.Annualize, "report annualized statistics")
	f.Float64Var(&c.periods, "periods", c.cfg.PeriodsPerYear, "periods per year")
	f.Uint64Var(&c.seed, "seed", c.cfg.Seed, "random seed")
	f.StringVar(&c.out, "out", c.cfg.OutputPath, "output file")
	f.StringVar(&c.format, "format", c.cfg.Format, "output format: csv or msgpack")
	f.StringVar(&c.chart, "chart", c.cfg.ChartPath, "optional frontier PNG")
	f.StringVar(&c.assets, "assets", "", "comma separated subset of asset columns")
	f.BoolVar(&c.store, "store", false, "also save the run in the run store")
	f.BoolVar(&c.upload, "upload", false, "upload the outputs to S3")
}

// request applies the positional arguments on top of the flags.
func (c *simulateCmd) request(args []string) (services.Request, error) {
	if len(args) > 4 {
		return services.Request{}, fmt.Errorf("%w: expected at most 4 arguments, got %d", domain.ErrInvalidParameter, len(args))
	}

	var err error
	for i, arg := range args {
		switch i {
		case 0:
			c.returns = arg
		case 1:
			if c.trials, err = strconv.Atoi(arg); err != nil {
				return services.Request{}, fmt.Errorf("%w: N must be an integer, got %q", domain.ErrInvalidParameter, arg)
			}
		case 2:
			if c.rf, err = strconv.ParseFloat(arg, 64); err != nil {
				return services.Request{}, fmt.Errorf("%w: rf must be a number, got %q", domain.ErrInvalidParameter, arg)
			}
		case 3:
			n, err := strconv.Atoi(arg)
			if err != nil {
				return services.Request{}, fmt.Errorf("%w: annualize must be an integer (0 or 1), got %q", domain.ErrInvalidParameter, arg)
			}
			c.annualize = n != 0
		}
	}

	if c.trials < 0 {
		return services.Request{}, fmt.Errorf("%w: N must be non-negative, got %d", domain.ErrInvalidParameter, c.trials)
	}
	if c.returns == "" {
		return services.Request{}, fmt.Errorf("%w: no returns file", domain.ErrInvalidParameter)
	}
	if c.format != config.FormatCSV && c.format != config.FormatMsgpack {
		return services.Request{}, fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidParameter, c.format)
	}
	assets, err := returns.ParseSelection(c.assets)
	if err != nil {
		return services.Request{}, err
	}

	return services.Request{
		Source:         c.returns,
		ReturnsPath:    c.returns,
		Assets:         assets,
		Trials:         c.trials,
		RiskFreeRate:   c.rf,
		Annualize:      c.annualize,
		PeriodsPerYear: c.periods,
		Seed:           c.seed,
		OutputPath:     c.out,
		Format:         c.format,
		ChartPath:      c.chart,
		Store:          c.store,
		Upload:         c.upload,
	}, nil
}

func (c *simulateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req, err := c.request(f.Args())
	if err != nil {
		return usageError(err)
	}

	log := newLogger(c.cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store    services.RunStore
		uploader services.Uploader
	)
	if req.Store {
		db, repo, err := openStore(c.cfg, log)
		if err != nil {
			return fail(err)
		}
		defer db.Close()
		store = repo
	}
	if req.Upload {
		client, err := s3.NewClient(ctx, c.cfg.S3, log)
		if err != nil {
			return fail(err)
		}
		uploader = client
	}

	report, err := services.NewSimulationService(store, uploader, log).Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted, no output written")
			return subcommands.ExitFailure
		}
		return fail(err)
	}

	printReport(os.Stdout, report)
	return subcommands.ExitSuccess
}

func printReport(w io.Writer, report *services.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "run\t%s\n", report.RunID)
	fmt.Fprintf(tw, "basis\t%s\n", report.Basis)
	fmt.Fprintf(tw, "portfolios\t%d\n", report.Summary.Count)
	printPortfolio(tw, "max sharpe", report.Labels, report.Summary.MaxSharpe)
	printPortfolio(tw, "min volatility", report.Labels, report.Summary.MinVolatility)
	for _, file := range report.Files {
		fmt.Fprintf(tw, "wrote\t%s\n", file)
	}
	for _, loc := range report.Locations {
		fmt.Fprintf(tw, "uploaded\t%s\n", loc)
	}
	if report.Stored {
		fmt.Fprintf(tw, "stored\t%s\n", report.RunID)
	}
}

func printPortfolio(w io.Writer, title string, labels []string, r *simulation.Result) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "%s\tsharpe %.4f\tret %.4f\tvol %.4f\n", title, r.Sharpe, r.Return, r.Volatility)
	for k, label := range labels {
		fmt.Fprintf(w, "\t%s\t%.4f\n", label, r.Weights[k])
	}
}
