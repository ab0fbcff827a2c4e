package service

import (
	"context"
	"exposure/internal/config"
	"exposure/internal/model"
	"exposure/internal/utils"
	"time"
)

// Lookup is one report category. Failures come back inside the result.
type Lookup interface {
	Lookup(ctx context.Context, domain string) model.LookupResult
}

// CollectSteps is the number of progress updates Collect reports after the
// initial zero.
const CollectSteps = 3

type Collector struct {
	Whois        Lookup
	ARIN         Lookup
	Certificates Lookup
}

// NewCollector wires the three lookups from configuration.
func NewCollector(cfg *config.Config) (*Collector, error) {
	client := NewHTTPClient(cfg.HTTPTimeout)

	arin, err := NewARINService(NewDNSService(cfg.DNSResolver), client, cfg.RDAPServer, cfg.ASNLookup)
	if err != nil {
		return nil, err
	}

	return &Collector{
		Whois:        NewWhoisService(cfg.WhoisTimeout),
		ARIN:         arin,
		Certificates: NewCTService(client, cfg.CrtShURL),
	}, nil
}

// Collect runs the lookups one after another. onStep, if set, is called with
// the number of finished lookups, starting at 0 before the first.
func (c *Collector) Collect(ctx context.Context, domain string, onStep func(step int)) model.Report {
	step := func(n int) {
		if onStep != nil {
			onStep(n)
		}
	}

	start := time.Now()
	step(0)

	var report model.Report
	report.Whois = c.Whois.Lookup(ctx, domain)
	step(1)
	report.ARIN = c.ARIN.Lookup(ctx, domain)
	step(2)
	report.Certificates = c.Certificates.Lookup(ctx, domain)
	step(3)

	utils.Log.Info("collection finished",
		utils.Field("domain", domain),
		utils.Field("whois_ok", !report.Whois.Failed()),
		utils.Field("arin_ok", !report.ARIN.Failed()),
		utils.Field("ct_ok", !report.Certificates.Failed()),
		utils.Field("elapsed", time.Since(start).String()))

	return report
}
