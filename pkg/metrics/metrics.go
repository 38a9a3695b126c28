package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector of this module. It is separate from the
// prometheus default registry so embedding applications are not polluted.
var Registry = prometheus.NewRegistry()

var (
	ScansStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvrange",
		Name:      "scans_total",
		Help:      "Range scans that opened a cursor, by direction.",
	}, []string{"direction"})

	EntriesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kvrange",
		Name:      "scan_entries_total",
		Help:      "Entries read from cursors by range scans.",
	})

	ScanErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kvrange",
		Name:      "scan_errors_total",
		Help:      "Range scans aborted by a storage or view error.",
	})

	OpenSnapshots = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvrange",
		Name:      "open_snapshots",
		Help:      "Snapshots currently held open by API clients.",
	})
)

func init() {
	Registry.MustRegister(ScansStarted, EntriesRead, ScanErrors, OpenSnapshots)
}

// Direction is the label value for ScansStarted.
func Direction(reverse bool) string {
	if reverse {
		return "reverse"
	}
	return "forward"
}

// Handler serves the module's metrics in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
