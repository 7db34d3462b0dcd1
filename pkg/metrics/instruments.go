package metrics

import "github.com/prometheus/client_golang/prometheus"

// Instruments holds handles to every instrument spec §6 requires, all obtained through
// Registry.GetOrCreate* so no instrument can be created outside the shared registry.
type Instruments struct {
	VNFInstancesTotal     *prometheus.GaugeVec
	VNFCPUUsage           *prometheus.GaugeVec
	VNFMemoryUsage        *prometheus.GaugeVec
	VNFProcessingLatency  *prometheus.HistogramVec
	ScalingActionsTotal   *prometheus.CounterVec
	ForecastAccuracy      *prometheus.HistogramVec
	SFCRequestsTotal      *prometheus.CounterVec
	DRLEpisodeReward      *prometheus.GaugeVec
}

// NewInstruments registers every required instrument against reg and returns the handles.
func NewInstruments(reg *Registry) (*Instruments, error) {
	var err error
	ins := &Instruments{}

	if ins.VNFInstancesTotal, err = reg.GetOrCreateGauge(
		"vnf_instances_total", []string{"vnf_type"}, "current instance count per VNF type"); err != nil {
		return nil, err
	}
	if ins.VNFCPUUsage, err = reg.GetOrCreateGauge(
		"vnf_cpu_usage", []string{"vnf_type", "instance_id"}, "per-instance CPU utilization percent"); err != nil {
		return nil, err
	}
	if ins.VNFMemoryUsage, err = reg.GetOrCreateGauge(
		"vnf_memory_usage", []string{"vnf_type", "instance_id"}, "per-instance memory utilization percent"); err != nil {
		return nil, err
	}
	if ins.VNFProcessingLatency, err = reg.GetOrCreateHistogram(
		"vnf_processing_latency", []string{"vnf_type", "instance_id"}, "per-instance processing latency, milliseconds"); err != nil {
		return nil, err
	}
	if ins.ScalingActionsTotal, err = reg.GetOrCreateCounter(
		"scaling_actions_total", []string{"vnf_type", "action"}, "scaling decisions taken, by outcome"); err != nil {
		return nil, err
	}
	if ins.ForecastAccuracy, err = reg.GetOrCreateHistogram(
		"forecast_accuracy", []string{"vnf_type", "metric"}, "forecast point-prediction error"); err != nil {
		return nil, err
	}
	if ins.SFCRequestsTotal, err = reg.GetOrCreateCounter(
		"sfc_requests_total", []string{"outcome"}, "chain allocation requests, by outcome"); err != nil {
		return nil, err
	}
	if ins.DRLEpisodeReward, err = reg.GetOrCreateGauge(
		"drl_episode_reward", nil, "most recent learning-agent episode reward"); err != nil {
		return nil, err
	}
	return ins, nil
}
