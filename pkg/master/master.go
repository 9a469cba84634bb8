// Package master implements the UDP master server core: it issues
// registration challenges, tracks live game servers, and answers browser
// queries with filtered address lists.
package master

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fastrand"

	"github.com/goldsrcnet/specter/pkg/protocol"
)

// DefaultTimeout is the fallback TTL, in seconds, for challenges and server
// registrations.
const DefaultTimeout = 300

// How many cleanup calls are skipped between eviction sweeps of each
// directory.
const (
	challengeCleanupMax = 100
	serverCleanupMax    = 100
)

// ErrMissingChallenge is reported for a registration whose info string
// carries no challenge echo.
var ErrMissingChallenge = errors.New("missing challenge in registration")

type Config struct {
	// Addr is the UDP address to listen on.
	Addr netip.AddrPort

	// ChallengeTTL and ServerTTL are entry lifetimes in seconds. Zero means
	// DefaultTimeout.
	ChallengeTTL uint32
	ServerTTL    uint32
}

// Master is the directory and request handler. It runs on a single
// goroutine; per-datagram handling is strictly serialized, so the maps need
// no locking. Only the metrics gauges are read concurrently, through the
// atomic size counters.
type Master struct {
	log  zerolog.Logger
	conn *net.UDPConn
	cfg  Config

	challenges map[netip.AddrPort]entry[uint32]
	servers    map[netip.AddrPort]entry[protocol.Server]
	rng        fastrand.RNG

	start             time.Time
	cleanupChallenges int
	cleanupServers    int

	nchallenges atomic.Int64
	nservers    atomic.Int64
	metricsObj  masterMetrics

	clock func() time.Time // overridden in tests
}

// New binds the UDP socket and initializes an empty directory. A bind
// failure is fatal to startup.
func New(cfg Config, log zerolog.Logger) (*Master, error) {
	if cfg.ChallengeTTL == 0 {
		cfg.ChallengeTTL = DefaultTimeout
	}
	if cfg.ServerTTL == 0 {
		cfg.ServerTTL = DefaultTimeout
	}

	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(cfg.Addr))
	if err != nil {
		return nil, fmt.Errorf("bind server socket: %w", err)
	}

	m := &Master{
		log:        log,
		conn:       conn,
		cfg:        cfg,
		challenges: map[netip.AddrPort]entry[uint32]{},
		servers:    map[netip.AddrPort]entry[protocol.Server]{},
		start:      time.Now(),
		clock:      time.Now,
	}
	m.initMetrics()
	return m, nil
}

// LocalAddr returns the bound socket address.
func (m *Master) LocalAddr() netip.AddrPort {
	return m.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Run receives and dispatches datagrams until ctx is canceled. A malformed
// or hostile datagram never stops the loop.
func (m *Master) Run(ctx context.Context) error {
	m.log.Info().Stringer("addr", m.LocalAddr()).Msg("listening")

	stop := context.AfterFunc(ctx, func() {
		m.conn.Close()
	})
	defer stop()

	buf := make([]byte, protocol.MaxPacketSize)
	for {
		n, raddr, err := m.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive packet: %w", err)
		}

		from := netip.AddrPortFrom(raddr.Addr().Unmap(), raddr.Port())
		if !from.Addr().Is4() {
			m.metricsObj.packets_total.drop_ipv6.Inc()
			m.log.Warn().Stringer("from", from).Msg("ignoring non-IPv4 peer")
			continue
		}

		if err := m.handlePacket(from, buf[:n]); err != nil {
			m.log.Error().Err(err).Stringer("from", from).Msg("handle packet")
		}
	}
}

func (m *Master) handlePacket(from netip.AddrPort, data []byte) error {
	pkt, err := protocol.DecodePacket(data)
	if err != nil {
		m.metricsObj.packets_total.invalid.Inc()
		m.log.Trace().Stringer("from", from).Hex("data", data).Msg("dropping undecodable packet")
		return nil
	}

	switch pkt := pkt.(type) {
	case protocol.Challenge:
		m.metricsObj.packets_total.challenge.Inc()
		nonce := m.addChallenge(from)
		m.log.Trace().Stringer("from", from).Uint32("challenge", nonce).Msg("new challenge")
		if err := m.sendChallengeResponse(from, nonce, pkt.Nonce); err != nil {
			return err
		}
		m.removeOutdatedChallenges()

	case protocol.ServerAdd:
		m.metricsObj.packets_total.server_add.Inc()
		if pkt.Challenge == nil {
			m.metricsObj.server_add_total.reject_missing_challenge.Inc()
			return ErrMissingChallenge
		}
		e, ok := m.challenges[from]
		if !ok {
			m.metricsObj.server_add_total.reject_unknown_challenge.Inc()
			m.log.Trace().Stringer("from", from).Msg("no challenge issued for peer")
			return nil
		}
		if !e.valid(m.now(), m.cfg.ChallengeTTL) {
			m.metricsObj.server_add_total.reject_expired_challenge.Inc()
			return nil
		}
		if *pkt.Challenge != e.value {
			m.metricsObj.server_add_total.reject_nonce_mismatch.Inc()
			m.log.Warn().
				Stringer("from", from).
				Uint32("want", e.value).
				Uint32("got", *pkt.Challenge).
				Msg("challenge mismatch")
			return nil
		}
		delete(m.challenges, from)
		m.nchallenges.Add(-1)
		m.addServer(from, protocol.NewServer(&pkt.Info))
		m.metricsObj.server_add_total.success.Inc()
		m.removeOutdatedServers()

	case protocol.ServerRemove:
		m.metricsObj.packets_total.server_remove.Inc()
		// deliberately ignored

	case protocol.QueryServers:
		m.metricsObj.packets_total.query_servers.Inc()
		filter, err := protocol.DecodeFilter(pkt.RawFilter)
		if err != nil {
			m.metricsObj.query_servers_total.reject_invalid_filter.Inc()
			m.log.Warn().Err(err).Stringer("from", from).Msg("invalid filter")
			return nil
		}
		return m.sendServerList(from, pkt.Region, &filter)

	case protocol.SourceQuery:
		m.metricsObj.packets_total.source_query.Inc()
		// placeholder until real info responses are implemented
		return m.send(nil, from)
	}

	return nil
}

// now is the monotonic clock: seconds since startup, wrapping at 2^32.
func (m *Master) now() uint32 {
	return uint32(m.clock().Sub(m.start) / time.Second)
}

func (m *Master) addChallenge(addr netip.AddrPort) uint32 {
	nonce := m.rng.Uint32()
	if _, ok := m.challenges[addr]; !ok {
		m.nchallenges.Add(1)
	}
	m.challenges[addr] = entry[uint32]{time: m.now(), value: nonce}
	m.metricsObj.challenges_issued_total.Inc()
	return nonce
}

func (m *Master) addServer(addr netip.AddrPort, srv protocol.Server) {
	if _, ok := m.servers[addr]; ok {
		m.log.Trace().Stringer("addr", addr).Msg("updated game server")
	} else {
		m.nservers.Add(1)
		m.log.Trace().Stringer("addr", addr).Msg("new game server")
	}
	m.servers[addr] = entry[protocol.Server]{time: m.now(), value: srv}
}

func (m *Master) removeOutdatedChallenges() {
	if m.cleanupChallenges < challengeCleanupMax {
		m.cleanupChallenges++
		return
	}
	m.cleanupChallenges = 0

	now := m.now()
	removed := 0
	for addr, e := range m.challenges {
		if !e.valid(now, m.cfg.ChallengeTTL) {
			delete(m.challenges, addr)
			removed++
		}
	}
	if removed > 0 {
		m.nchallenges.Add(-int64(removed))
		m.log.Trace().Int("removed", removed).Msg("removed outdated challenges")
	}
}

func (m *Master) removeOutdatedServers() {
	if m.cleanupServers < serverCleanupMax {
		m.cleanupServers++
		return
	}
	m.cleanupServers = 0

	now := m.now()
	removed := 0
	for addr, e := range m.servers {
		if !e.valid(now, m.cfg.ServerTTL) {
			delete(m.servers, addr)
			removed++
		}
	}
	if removed > 0 {
		m.nservers.Add(-int64(removed))
		m.log.Trace().Int("removed", removed).Msg("removed outdated servers")
	}
}

func (m *Master) sendChallengeResponse(to netip.AddrPort, nonce uint32, echo *uint32) error {
	buf := make([]byte, 0, protocol.MaxPacketSize)
	buf = protocol.AppendChallengeResponse(buf, nonce, echo)
	if err := m.send(buf, to); err != nil {
		return fmt.Errorf("send challenge response: %w", err)
	}
	return nil
}

func (m *Master) sendServerList(to netip.AddrPort, region protocol.Region, filter *protocol.Filter) error {
	now := m.now()

	w := protocol.NewServerListWriter(func(p []byte) error {
		return m.send(p, to)
	})
	for addr, e := range m.servers {
		if !e.valid(now, m.cfg.ServerTTL) {
			continue
		}
		if e.value.Region != region {
			continue
		}
		if !filter.Matches(addr, &e.value) {
			continue
		}
		if err := w.Add(addr); err != nil {
			return fmt.Errorf("send server list: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("send server list: %w", err)
	}
	m.metricsObj.query_servers_total.success.Inc()
	return nil
}

func (m *Master) send(p []byte, to netip.AddrPort) error {
	if _, err := m.conn.WriteToUDPAddrPort(p, to); err != nil {
		m.metricsObj.send_errors_total.Inc()
		return err
	}
	return nil
}
