package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/sri0013/vnf-project/pkg/config"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// buildPlan is the artifact `build` writes after validating cfg: a snapshot of what
// `orchestrate` would wire, with no side effects against any driver or listener.
type buildPlan struct {
	GeneratedAt   time.Time `json:"generated_at"`
	VNFTypes      []string  `json:"vnf_types"`
	MinInstances  int       `json:"min_instances"`
	MaxInstances  int       `json:"max_instances"`
	MetricsPort   int       `json:"metrics_port"`
	FlowPort      int       `json:"flow_port"`
	TickInterval  string    `json:"tick_interval"`
	MaxReservPerInstance int `json:"max_reservations_per_instance"`
}

func writePlan(path string, cfg *config.Config, types []vnf.VNFType) error {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	p := buildPlan{
		GeneratedAt:          time.Now(),
		VNFTypes:             names,
		MinInstances:         cfg.MinInstances,
		MaxInstances:         cfg.MaxInstances,
		MetricsPort:          cfg.HTTP.MetricsPort,
		FlowPort:             cfg.HTTP.FlowPort,
		TickInterval:         cfg.ControlLoop.TickInterval.String(),
		MaxReservPerInstance: cfg.Chain.MaxReservationsPerInstance,
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
