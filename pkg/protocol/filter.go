package protocol

import (
	"errors"
	"net/netip"

	"github.com/goldsrcnet/specter/pkg/infostring"
	"github.com/rs/zerolog/log"
)

// FilterFlags is the bitset browsers constrain servers by. Bits 0-7, LAN
// and BOTS are derived from a registration; WHITE (bit 8) has no ingest
// source, and NOR and NAND are query-only modifiers.
type FilterFlags uint16

const (
	// Servers running dedicated.
	FilterDedicated FilterFlags = 1 << iota
	// Servers that are spectator proxies.
	FilterProxy
	// Servers using anti-cheat technology.
	FilterSecure
	// Servers running on a Linux platform.
	FilterLinux
	// Servers that are password protected.
	FilterPassword
	// Servers that are not empty.
	FilterNotEmpty
	// Servers that are full.
	FilterFull
	// Servers that are empty.
	FilterNoPlayers
	// Servers that are whitelisted.
	FilterWhite
	// Servers that are LAN.
	FilterLAN
	// Servers that have bots.
	FilterBots
	// Servers matching any of the following conditions should not be returned.
	FilterNor
	// Servers matching all of the following conditions should not be returned.
	FilterNand
)

// FlagsFromInfo derives the queryable flag bits of a registration.
func FlagsFromInfo(info *ServerInfo) FilterFlags {
	var f FilterFlags
	setFlag(&f, FilterDedicated, info.Type == ServerTypeDedicated)
	setFlag(&f, FilterProxy, info.Type == ServerTypeProxy)
	setFlag(&f, FilterSecure, info.Flags.Has(ServerFlagSecure))
	setFlag(&f, FilterLinux, info.OS == OSLinux)
	setFlag(&f, FilterPassword, info.Flags.Has(ServerFlagPassword))
	setFlag(&f, FilterNotEmpty, info.Players > 0)
	setFlag(&f, FilterFull, info.Players >= info.Max)
	setFlag(&f, FilterNoPlayers, info.Players == 0)
	setFlag(&f, FilterLAN, info.Flags.Has(ServerFlagLAN))
	setFlag(&f, FilterBots, info.Flags.Has(ServerFlagBots))
	return f
}

func setFlag(f *FilterFlags, x FilterFlags, v bool) {
	if v {
		*f |= x
	} else {
		*f &^= x
	}
}

// Filter is a decoded browser query. Nil pointer fields were not mentioned
// in the query. For every flag key mentioned, the corresponding bit of
// FlagsMask is set and the bit of Flags carries the requested value.
//
// Gametype, Gamedata, Gamedataor, NameMatch, AppID, NApp, and
// CollapseAddrHash are accepted but not used by Matches. The NOR/NAND bits
// are not applied as modifiers; Matches compares them under FlagsMask like
// any other bit, and since no server record carries them, a filter that sets
// either one to 1 matches no server.
type Filter struct {
	Gamedir      *string
	Map          *string
	Gametype     *string
	Gamedata     *string
	Gamedataor   *string
	NameMatch    *string
	VersionMatch *string

	// GameAddr restricts results to one IP; a zero port matches any port.
	GameAddr *netip.AddrPort

	AppID *uint32
	NApp  *uint32

	CollapseAddrHash bool

	Flags     FilterFlags
	FlagsMask FilterFlags
}

// DecodeFilter decodes the filter info string of a query packet.
func DecodeFilter(src []byte) (Filter, error) {
	var f Filter
	p := infostring.New(src)

	for {
		name, err := p.Bytes()
		if err != nil {
			if errors.Is(err, infostring.ErrEnd) {
				break
			}
			return f, err
		}

		switch string(name) {
		case "dedicated":
			err = f.parseFlag(p, FilterDedicated)
		case "secure":
			err = f.parseFlag(p, FilterSecure)
		case "linux":
			err = f.parseFlag(p, FilterLinux)
		case "password":
			err = f.parseFlag(p, FilterPassword)
		case "empty":
			err = f.parseFlag(p, FilterNotEmpty)
		case "full":
			err = f.parseFlag(p, FilterFull)
		case "proxy":
			err = f.parseFlag(p, FilterProxy)
		case "noplayers":
			err = f.parseFlag(p, FilterNoPlayers)
		case "white":
			err = f.parseFlag(p, FilterWhite)
		case "lan":
			err = f.parseFlag(p, FilterLAN)
		case "bots":
			err = f.parseFlag(p, FilterBots)
		case "nor":
			err = f.parseFlag(p, FilterNor)
		case "nand":
			err = f.parseFlag(p, FilterNand)
		case "gamedir":
			f.Gamedir, err = parseOptString(p)
		case "map":
			f.Map, err = parseOptString(p)
		case "gametype":
			f.Gametype, err = parseOptString(p)
		case "gamedata":
			f.Gamedata, err = parseOptString(p)
		case "gamedataor":
			f.Gamedataor, err = parseOptString(p)
		case "name_match":
			f.NameMatch, err = parseOptString(p)
		case "version_match":
			f.VersionMatch, err = parseOptString(p)
		case "appid":
			f.AppID, err = parseOptUint32(p)
		case "napp":
			f.NApp, err = parseOptUint32(p)
		case "collapse_addr_hash":
			f.CollapseAddrHash, err = p.Bool()
		case "gameaddr":
			var s string
			if s, err = p.String(); err == nil {
				f.GameAddr = parseGameAddr(s)
			}
		default:
			var value []byte
			if value, err = p.Bytes(); err == nil {
				log.Debug().
					Str("key", string(name)).
					Str("value", string(value)).
					Msg("skipping unknown filter field")
			}
		}
		if err != nil {
			return f, err
		}
	}

	return f, nil
}

// InsertFlag records a constraint on one flag bit.
func (f *Filter) InsertFlag(x FilterFlags, v bool) {
	setFlag(&f.Flags, x, v)
	f.FlagsMask |= x
}

func (f *Filter) parseFlag(p *infostring.Parser, x FilterFlags) error {
	v, err := p.Bool()
	if err != nil {
		return err
	}
	f.InsertFlag(x, v)
	return nil
}

// Matches reports whether the server registered at addr satisfies the
// filter. Every flag bit in FlagsMask must match exactly, the enforced
// string predicates compare for equality, and GameAddr compares the IP and,
// if non-zero, the port.
func (f *Filter) Matches(addr netip.AddrPort, s *Server) bool {
	if s.Flags&f.FlagsMask != f.Flags {
		return false
	}
	if f.Gamedir != nil && *f.Gamedir != s.Gamedir {
		return false
	}
	if f.Map != nil && *f.Map != s.Map {
		return false
	}
	if f.VersionMatch != nil && *f.VersionMatch != s.Version {
		return false
	}
	if f.GameAddr != nil {
		if f.GameAddr.Addr() != addr.Addr() {
			return false
		}
		if p := f.GameAddr.Port(); p != 0 && p != addr.Port() {
			return false
		}
	}
	return true
}

func parseOptString(p *infostring.Parser) (*string, error) {
	s, err := p.String()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func parseOptUint32(p *infostring.Parser) (*uint32, error) {
	v, err := p.Uint32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseGameAddr accepts "ip:port" or a bare "ip" (port 0, meaning any).
// Unparseable or non-IPv4 values are ignored.
func parseGameAddr(s string) *netip.AddrPort {
	if ap, err := netip.ParseAddrPort(s); err == nil && ap.Addr().Is4() {
		return &ap
	}
	if ip, err := netip.ParseAddr(s); err == nil && ip.Is4() {
		ap := netip.AddrPortFrom(ip, 0)
		return &ap
	}
	return nil
}
