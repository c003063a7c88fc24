package server

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/services"
)

// requestFromQuery starts from the configured defaults and applies the
// query parameters trials, rf, annualize, periods, seed and assets.
func requestFromQuery(cfg *config.Config, q url.Values) (services.Request, error) {
	req := services.Request{
		Trials:         cfg.Trials,
		RiskFreeRate:   cfg.RiskFreeRate,
		Annualize:      cfg.Annualize,
		PeriodsPerYear: cfg.PeriodsPerYear,
		Seed:           cfg.Seed,
	}

	var err error
	if req.Assets, err = returns.ParseSelection(q.Get("assets")); err != nil {
		return req, err
	}
	if v := q.Get("trials"); v != "" {
		if req.Trials, err = strconv.Atoi(v); err != nil || req.Trials < 0 {
			return req, fmt.Errorf("%w: trials must be a non-negative integer, got %q", domain.ErrInvalidParameter, v)
		}
	}
	if v := q.Get("rf"); v != "" {
		if req.RiskFreeRate, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("%w: rf must be a number, got %q", domain.ErrInvalidParameter, v)
		}
	}
	if v := q.Get("annualize"); v != "" {
		if req.Annualize, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("%w: annualize must be a boolean, got %q", domain.ErrInvalidParameter, v)
		}
	}
	if v := q.Get("periods"); v != "" {
		if req.PeriodsPerYear, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("%w: periods must be a number, got %q", domain.ErrInvalidParameter, v)
		}
	}
	if v := q.Get("seed"); v != "" {
		if req.Seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return req, fmt.Errorf("%w: seed must be a non-negative integer, got %q", domain.ErrInvalidParameter, v)
		}
	}
	return req, nil
}
