// Package controlplane wires C1-C8 into a single runnable unit, shared by
// cmd/orchestrator and the tests/e2e scenario suite so both drive the exact same
// production wiring rather than two independently maintained harnesses.
package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sri0013/vnf-project/internal/simdriver"
	"github.com/sri0013/vnf-project/pkg/agent"
	"github.com/sri0013/vnf-project/pkg/config"
	"github.com/sri0013/vnf-project/pkg/flowcontrol"
	"github.com/sri0013/vnf-project/pkg/forecast"
	"github.com/sri0013/vnf-project/pkg/metrics"
	"github.com/sri0013/vnf-project/pkg/pathsafe"
	"github.com/sri0013/vnf-project/pkg/scaling"
	"github.com/sri0013/vnf-project/pkg/scrape"
	"github.com/sri0013/vnf-project/pkg/sfc"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// Plane bundles every constructed component of the control plane (C1-C8).
type Plane struct {
	Cfg        *config.Config
	Driver     *simdriver.Driver
	Registry   *metrics.Registry
	Ins        *metrics.Instruments
	Catalog    *vnf.Catalog
	VNFCtrl    *vnf.Controller
	FlowCtrl   *flowcontrol.Controller
	FlowAPI    *flowcontrol.Server
	Scraper    *scrape.Scraper
	Forecaster *forecast.Forecaster
	Learner    *agent.Agent
	episode    int
	Scaler     *scaling.Controller
	Allocator  *sfc.Allocator
	validator  *pathsafe.Validator
	Types      []vnf.VNFType
	log        *logrus.Entry
}

// Build wires C1-C8 over cfg.
func Build(cfg *config.Config, seed int64) (*Plane, error) {
	types := make([]vnf.VNFType, 0, len(cfg.VNFTypes))
	entries := make([]vnf.CatalogEntry, 0, len(cfg.VNFTypes))
	for _, t := range cfg.VNFTypes {
		vt := vnf.VNFType(t)
		types = append(types, vt)
		entries = append(entries, vnf.CatalogEntry{
			Type:         vt,
			Image:        t,
			ProbeCommand: []string{"healthcheck"},
			Limits:       vnf.ResourceLimits{CPUMillicores: 500, MemoryMB: 512},
		})
	}
	catalog := vnf.NewCatalog(entries)

	registry := metrics.New()
	ins, err := metrics.NewInstruments(registry)
	if err != nil {
		return nil, fmt.Errorf("instrument registration: %w", err)
	}

	driver := simdriver.New(seed)
	timeouts := vnf.Timeouts{
		HealthCheckTimeout: cfg.RollingUpdate.HealthCheckTimeout,
		DrainTimeout:       cfg.RollingUpdate.DrainTimeout,
		GracePeriod:        cfg.RollingUpdate.GracePeriod,
	}
	vnfCtrl := vnf.NewController(driver, catalog, timeouts, cfg.MinInstances, cfg.MaxInstances)

	flowCtrl := flowcontrol.NewController(vnfCtrl.Pool)
	flowAPI := flowcontrol.NewServer(flowCtrl, vnfCtrl.List)

	scraper := scrape.New(vnfCtrl.List, types, driver.ProbeFuncFor(vnfCtrl), ins,
		15*time.Second, 2*time.Second, 3, cfg.Forecasting.WindowSize)

	forecaster := forecast.New(forecast.DefaultConfig(cfg.Forecasting.WindowSize), ins)

	space := agent.NewActionSpace(types)
	validator := pathsafe.NewValidator()
	validator.AddAllowedDirectory(pathsafe.AllowedDirectory{Path: "checkpoints", Extensions: []string{".gob"}, Recursive: false})
	learner, episode, err := agent.LoadOrNew(agent.FromDRLConfig(cfg.DRLConfig), space, seed, validator, cfg.DRLConfig.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("loading agent checkpoint: %w", err)
	}

	scaler := scaling.New(types, vnfCtrl, flowCtrl, forecaster, scraper, learner, cfg, ins)
	allocator := sfc.New(vnfCtrl, flowCtrl, cfg.Chain.MaxReservationsPerInstance, scaler, ins)

	return &Plane{
		Cfg:        cfg,
		Driver:     driver,
		Registry:   registry,
		Ins:        ins,
		Catalog:    catalog,
		VNFCtrl:    vnfCtrl,
		FlowCtrl:   flowCtrl,
		FlowAPI:    flowAPI,
		Scraper:    scraper,
		Forecaster: forecaster,
		Learner:    learner,
		episode:    episode,
		Scaler:     scaler,
		Allocator:  allocator,
		validator:  validator,
		Types:      types,
		log:        logrus.WithField("component", "orchestrator"),
	}, nil
}

// SeedInstances creates one active instance per VNFType up to min_instances and waits
// for health probes to resolve, so callers start from a pool that already satisfies
// spec §8 property 1's lower bound.
func (p *Plane) SeedInstances(ctx context.Context) error {
	for _, t := range p.Types {
		pool, ok := p.VNFCtrl.Pool(t)
		if !ok {
			continue
		}
		// new instances start in "starting", so count every pooled instance, not just active ones
		for len(pool.List()) < p.Cfg.MinInstances {
			if _, err := p.VNFCtrl.Create(ctx, t); err != nil {
				return fmt.Errorf("seeding %s: %w", t, err)
			}
		}
	}

	deadline := time.Now().Add(p.Cfg.RollingUpdate.HealthCheckTimeout + 5*time.Second)
	for _, t := range p.Types {
		pool, _ := p.VNFCtrl.Pool(t)
		for time.Now().Before(deadline) && CountActive(pool) < p.Cfg.MinInstances {
			time.Sleep(100 * time.Millisecond)
		}
	}
	return nil
}

// CountActive reports how many of pool's instances are currently active.
func CountActive(pool *vnf.Pool) int {
	n := 0
	for _, inst := range pool.List() {
		if inst.State() == "active" {
			n++
		}
	}
	return n
}

// Run starts the scraper, the control loop, and both HTTP listeners, blocking until ctx
// is cancelled, per spec §5's concurrency model and §2.4's dual-server pattern.
func (p *Plane) Run(ctx context.Context) error {
	if err := p.Registry.Start(fmt.Sprintf(":%d", p.Cfg.HTTP.MetricsPort)); err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	if err := p.FlowAPI.Start(fmt.Sprintf(":%d", p.Cfg.HTTP.FlowPort)); err != nil {
		return fmt.Errorf("flow api listener: %w", err)
	}

	go p.Scraper.Run(ctx)

	ticker := time.NewTicker(p.Cfg.ControlLoop.TickInterval)
	defer ticker.Stop()
	trainTicker := time.NewTicker(time.Second)
	defer trainTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.Shutdown()
		case <-ticker.C:
			p.Scaler.Tick(ctx)
		case <-trainTicker.C:
			if p.Learner.TrainStep() {
				p.episode++
				if p.Cfg.DRLConfig.ModelPath != "" && p.episode%p.Cfg.DRLConfig.CheckpointEvery == 0 {
					if err := p.Learner.Save(p.validator, p.Cfg.DRLConfig.ModelPath, p.episode); err != nil {
						p.log.WithError(err).Warn("checkpoint save failed")
					}
				}
			}
		}
	}
}

// Shutdown gracefully stops both listeners within a bounded window.
func (p *Plane) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var firstErr error
	if err := p.FlowAPI.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.Registry.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
