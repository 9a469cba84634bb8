package master

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// note: reject_ prefixes are client misbehavior, not backend failures

type masterMetrics struct {
	set           *metrics.Set
	packets_total struct {
		challenge     *metrics.Counter
		server_add    *metrics.Counter
		server_remove *metrics.Counter
		query_servers *metrics.Counter
		source_query  *metrics.Counter
		invalid       *metrics.Counter
		drop_ipv6     *metrics.Counter
	}
	challenges_issued_total *metrics.Counter
	server_add_total        struct {
		success                  *metrics.Counter
		reject_missing_challenge *metrics.Counter
		reject_unknown_challenge *metrics.Counter
		reject_expired_challenge *metrics.Counter
		reject_nonce_mismatch    *metrics.Counter
	}
	query_servers_total struct {
		success               *metrics.Counter
		reject_invalid_filter *metrics.Counter
	}
	send_errors_total *metrics.Counter
}

func (m *Master) initMetrics() {
	mo := &m.metricsObj
	mo.set = metrics.NewSet()

	mo.packets_total.challenge = mo.set.NewCounter(`specter_master_packets_total{type="challenge"}`)
	mo.packets_total.server_add = mo.set.NewCounter(`specter_master_packets_total{type="server_add"}`)
	mo.packets_total.server_remove = mo.set.NewCounter(`specter_master_packets_total{type="server_remove"}`)
	mo.packets_total.query_servers = mo.set.NewCounter(`specter_master_packets_total{type="query_servers"}`)
	mo.packets_total.source_query = mo.set.NewCounter(`specter_master_packets_total{type="source_query"}`)
	mo.packets_total.invalid = mo.set.NewCounter(`specter_master_packets_total{type="invalid"}`)
	mo.packets_total.drop_ipv6 = mo.set.NewCounter(`specter_master_packets_total{type="drop_ipv6"}`)

	mo.challenges_issued_total = mo.set.NewCounter(`specter_master_challenges_issued_total`)

	mo.server_add_total.success = mo.set.NewCounter(`specter_master_server_add_total{result="success"}`)
	mo.server_add_total.reject_missing_challenge = mo.set.NewCounter(`specter_master_server_add_total{result="reject_missing_challenge"}`)
	mo.server_add_total.reject_unknown_challenge = mo.set.NewCounter(`specter_master_server_add_total{result="reject_unknown_challenge"}`)
	mo.server_add_total.reject_expired_challenge = mo.set.NewCounter(`specter_master_server_add_total{result="reject_expired_challenge"}`)
	mo.server_add_total.reject_nonce_mismatch = mo.set.NewCounter(`specter_master_server_add_total{result="reject_nonce_mismatch"}`)

	mo.query_servers_total.success = mo.set.NewCounter(`specter_master_query_servers_total{result="success"}`)
	mo.query_servers_total.reject_invalid_filter = mo.set.NewCounter(`specter_master_query_servers_total{result="reject_invalid_filter"}`)

	mo.send_errors_total = mo.set.NewCounter(`specter_master_send_errors_total`)

	mo.set.NewGauge(`specter_master_servers`, func() float64 {
		return float64(m.nservers.Load())
	})
	mo.set.NewGauge(`specter_master_challenges`, func() float64 {
		return float64(m.nchallenges.Load())
	})
}

// WritePrometheus writes the master metrics in Prometheus text format. It is
// safe to call from other goroutines while the master is running.
func (m *Master) WritePrometheus(w io.Writer) {
	m.metricsObj.set.WritePrometheus(w)
}
