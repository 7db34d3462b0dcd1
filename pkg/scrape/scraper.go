package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sri0013/vnf-project/pkg/metrics"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// ProbeFunc is C3's per-instance scrape hook: pull the instance's current CPU/memory/
// latency/throughput. Implemented by the vnf package's Driver-backed controller.
type ProbeFunc func(ctx context.Context, inst *vnf.Instance) (vnf.Metrics, error)

// seriesKey identifies one (VNFType, metric) series.
type seriesKey struct {
	vnfType vnf.VNFType
	metric  string
}

// Scraper periodically pulls per-instance metrics, writes gauges into the C1 registry,
// and appends aggregates into per-(VNFType, metric) Series. Default period 15s.
type Scraper struct {
	instances       func(vnf.VNFType) []*vnf.Instance
	types           []vnf.VNFType
	probe           ProbeFunc
	period          time.Duration
	scrapeTimeout   time.Duration
	failureThreshold int
	window          int
	instruments     *metrics.Instruments
	limiter         *rate.Limiter

	mu          sync.Mutex
	series      map[seriesKey]*Series
	unhealthy   map[string]bool
	consecutive map[string]int

	log *logrus.Entry
}

// New creates a Scraper. period defaults to 15s, scrapeTimeout to 2s, failureThreshold
// (consecutive probe failures before exclusion) to 3, window (series length W) to 20, all
// per spec §4.2 and §5.
func New(instances func(vnf.VNFType) []*vnf.Instance, types []vnf.VNFType, probe ProbeFunc, instruments *metrics.Instruments, period, scrapeTimeout time.Duration, failureThreshold, window int) *Scraper {
	if period <= 0 {
		period = 15 * time.Second
	}
	if scrapeTimeout <= 0 {
		scrapeTimeout = 2 * time.Second
	}
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if window <= 0 {
		window = 20
	}
	return &Scraper{
		instances:        instances,
		types:            types,
		probe:            probe,
		period:           period,
		scrapeTimeout:    scrapeTimeout,
		failureThreshold: failureThreshold,
		window:           window,
		instruments:      instruments,
		limiter:          rate.NewLimiter(rate.Limit(50), 50),
		series:           make(map[seriesKey]*Series),
		unhealthy:        make(map[string]bool),
		log:              logrus.WithField("component", "scraper"),
	}
}

// Series returns (creating if absent) the Series for (t, metric).
func (s *Scraper) Series(t vnf.VNFType, metric string) *Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := seriesKey{vnfType: t, metric: metric}
	series, ok := s.series[key]
	if !ok {
		series = NewSeries(s.window)
		s.series[key] = series
	}
	return series
}

// IsUnhealthy reports whether id has been excluded from aggregates after consecutive
// probe failures.
func (s *Scraper) IsUnhealthy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unhealthy[id]
}

// Run executes one scrape cycle per period until ctx is cancelled. Scrape jitter is
// bounded by one period because each tick does its work synchronously before sleeping.
func (s *Scraper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scraper) tick(ctx context.Context) {
	now := time.Now()
	for _, t := range s.types {
		insts := s.instances(t)
		var cpuSum, memSum, latSum, throughputSum float64
		var healthyCount int

		for _, inst := range insts {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			scrapeCtx, cancel := context.WithTimeout(ctx, s.scrapeTimeout)
			m, err := s.probe(scrapeCtx, inst)
			cancel()

			if err != nil {
				s.recordFailure(inst.ID)
				continue
			}
			s.resetFailures(inst.ID)
			if s.IsUnhealthy(inst.ID) {
				continue
			}

			inst.LastMetrics = m
			if s.instruments != nil {
				s.instruments.VNFCPUUsage.WithLabelValues(string(t), inst.ID).Set(m.CPUPercent)
				s.instruments.VNFMemoryUsage.WithLabelValues(string(t), inst.ID).Set(m.MemoryPercent)
				s.instruments.VNFProcessingLatency.WithLabelValues(string(t), inst.ID).Observe(m.LatencyMS)
			}

			cpuSum += m.CPUPercent
			memSum += m.MemoryPercent
			latSum += m.LatencyMS
			throughputSum += m.ThroughputRPS
			healthyCount++
		}

		if s.instruments != nil {
			s.instruments.VNFInstancesTotal.WithLabelValues(string(t)).Set(float64(len(insts)))
		}

		if healthyCount == 0 {
			continue
		}
		s.Series(t, "cpu").Append(now, cpuSum/float64(healthyCount))
		s.Series(t, "memory").Append(now, memSum/float64(healthyCount))
		s.Series(t, "latency").Append(now, latSum/float64(healthyCount))
		s.Series(t, "throughput").Append(now, throughputSum) // sum across instances, per spec §3
	}
}

func (s *Scraper) recordFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// consecutiveFailures tracked inline via a side map keyed by id; reuse unhealthy map
	// semantics by counting in a companion map.
	if s.consecutive == nil {
		s.consecutive = make(map[string]int)
	}
	s.consecutive[id]++
	if s.consecutive[id] >= s.failureThreshold {
		s.unhealthy[id] = true
		s.log.WithField("instance_id", id).Warn("instance marked unhealthy after consecutive probe failures")
	}
}

func (s *Scraper) resetFailures(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consecutive != nil {
		delete(s.consecutive, id)
	}
	delete(s.unhealthy, id)
}
