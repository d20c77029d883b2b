package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dreschagin/risk-dashboard/internal/application/aggregator"
	"github.com/dreschagin/risk-dashboard/internal/application/dto"
	"github.com/dreschagin/risk-dashboard/internal/application/polling"
	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/domain/service"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/internal/infrastructure/analytics"
	"github.com/dreschagin/risk-dashboard/internal/infrastructure/discovery"
	"github.com/dreschagin/risk-dashboard/pkg/config"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

var rcaCmd = &cobra.Command{
	Use:   "rca",
	Short: "Fetch RCA summary, graph, supplier risk and heatmap once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runProbe(cmd.Context(), cmd.OutOrStdout(), "rca", "")
	},
}

var uebaCmd = &cobra.Command{
	Use:   "ueba",
	Short: "Fetch UEBA summary and ranking once, plus agent details with --agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		agent, _ := cmd.Flags().GetString("agent")
		return runProbe(cmd.Context(), cmd.OutOrStdout(), "ueba", agent)
	},
}

func init() {
	uebaCmd.Flags().String("agent", "", "agent id for profile, explanation and trend")
}

// probeReport итог одного прогона
type probeReport struct {
	View    string                `json:"view"`
	Agent   string                `json:"agent,omitempty"`
	Cycle   polling.CycleReport   `json:"cycle"`
	Sources []dto.SourceStatusDTO `json:"sources"`
}

func runProbe(ctx context.Context, out io.Writer, view, agent string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	log := logger.NewWithOutput(flags.logLevel, os.Stderr)

	client, err := newClient(ctx, log)
	if err != nil {
		return err
	}

	report := probe(ctx, client, view, agent, log)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if failed := report.Cycle.Count(polling.OutcomeFailed); failed > 0 {
		return &exitError{code: 1, err: fmt.Errorf("%d of %d sources failed", failed, len(report.Cycle.Outcomes))}
	}
	return nil
}

func newClient(ctx context.Context, log *logger.Logger) (*analytics.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	rcaURL, uebaURL := cfg.Analytics.RCABaseURL, cfg.Analytics.UEBABaseURL
	if flags.rcaURL != "" {
		rcaURL = flags.rcaURL
	}
	if flags.uebaURL != "" {
		uebaURL = flags.uebaURL
	}

	resolver, err := discovery.NewStaticResolver(rcaURL, uebaURL)
	if err != nil {
		return nil, err
	}
	endpoints := discovery.NewManager(resolver, 0)
	if err := endpoints.Refresh(ctx); err != nil {
		return nil, err
	}

	return analytics.NewClient(endpoints, analytics.Config{
		RequestTimeout: cfg.Analytics.RequestTimeout,
		RetryAttempts:  cfg.Analytics.RetryAttempts,
		RetryDelay:     cfg.Analytics.RetryDelay,
		RequestsPerSec: cfg.Analytics.RequestsPerSec,
		Burst:          cfg.Analytics.Burst,
		BreakerTimeout: cfg.Analytics.BreakerTimeout,
		MaxBodyBytes:   cfg.Analytics.MaxBodyBytes,
	}, log), nil
}

// probe выполняет один цикл опроса и возвращает статусы источников
func probe(ctx context.Context, client *analytics.Client, view, agent string, log *logger.Logger) probeReport {
	var (
		ids     []valueobject.SourceID
		sources []port.DataSource
	)

	switch view {
	case "rca":
		ids = valueobject.RCASources()
		sources = analytics.NewRCASources(client, service.NewGraphValidator(), log)
	default:
		ids = valueobject.UEBAPolledSources()
		sources = analytics.NewUEBASources(client)
		if agent != "" {
			ids = append(ids, valueobject.UEBAAgentSources()...)
			for _, dep := range analytics.NewUEBADependentSources(client) {
				sources = append(sources, boundSource{dep: dep, subject: agent})
			}
		}
	}

	agg := aggregator.New(ids, log)
	defer agg.Close()
	if agent != "" {
		agg.Reset(agent, valueobject.UEBAAgentSources()...)
	}

	cycle := polling.NewScheduler(agg, log).RunOnce(ctx, sources)

	return probeReport{
		View:    view,
		Agent:   agent,
		Cycle:   cycle,
		Sources: dto.SourceStatuses(agg.Snapshots(), ids),
	}
}

// boundSource опрашивает зависимый источник для фиксированного subject
type boundSource struct {
	dep     port.DependentSource
	subject string
}

func (b boundSource) ID() valueobject.SourceID { return b.dep.ID() }

func (b boundSource) Fetch(ctx context.Context) (any, error) {
	return b.dep.FetchFor(ctx, b.subject)
}
