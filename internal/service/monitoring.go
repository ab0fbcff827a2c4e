package service

import (
	"context"
	"exposure/internal/model"
	"exposure/internal/storage"
	"exposure/internal/utils"

	"github.com/go-faster/errors"
)

type ReportCollector interface {
	Collect(ctx context.Context, domain string, onStep func(step int)) model.Report
}

type MonitorService struct {
	Storage   *storage.Storage
	Collector ReportCollector
}

func NewMonitorService(s *storage.Storage, c ReportCollector) *MonitorService {
	return &MonitorService{
		Storage:   s,
		Collector: c,
	}
}

// RunCheck collects a fresh report for domain and archives it. It reports
// whether the archive changed.
func (m *MonitorService) RunCheck(ctx context.Context, domain string) (bool, error) {
	if !utils.IsValidDomain(domain) {
		utils.Log.Warn("invalid target for scheduled check", utils.Field("domain", domain))
		return false, errors.Errorf("invalid domain %q", domain)
	}
	utils.Log.Info("running scheduled check", utils.Field("domain", domain))

	report := m.Collector.Collect(ctx, domain, nil)
	changed, err := m.Storage.AddReportHistory(ctx, domain, report)
	if err != nil {
		return false, errors.Wrapf(err, "archive %s", domain)
	}

	utils.Log.Info("finished check", utils.Field("domain", domain), utils.Field("changed", changed))
	return changed, nil
}
