package prometheus

import "github.com/prometheus/client_golang/prometheus"

// Engine counters, registered on the default registry the /metrics handler
// serves.
var (
	CodesIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weer_codes_issued_total",
		Help: "Short codes successfully issued, by code space.",
	}, []string{"space"})

	CollisionRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weer_code_collision_retries_total",
		Help: "Random draws discarded due to a uniqueness collision, by code space.",
	}, []string{"space"})

	PoolExhaustions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weer_pool_exhaustions_total",
		Help: "Claims refused because a code space had no capacity, by code space.",
	}, []string{"space"})

	JanitorReclaimed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weer_janitor_reclaimed_total",
		Help: "Expired rows reclaimed by the janitor, by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(CodesIssued, CollisionRetries, PoolExhaustions, JanitorReclaimed)
}
