package protocol

import (
	"errors"

	"github.com/goldsrcnet/specter/pkg/infostring"
	"github.com/rs/zerolog/log"
)

// ServerType classifies a game server. Decoded from a one-byte token;
// anything unrecognized maps to ServerTypeUnknown.
type ServerType uint8

const (
	ServerTypeUnknown ServerType = iota
	ServerTypeDedicated
	ServerTypeLocal
	ServerTypeProxy
)

func parseServerType(p *infostring.Parser) (ServerType, error) {
	s, err := p.Bytes()
	if err != nil {
		return ServerTypeUnknown, err
	}
	switch string(s) {
	case "d":
		return ServerTypeDedicated, nil
	case "l":
		return ServerTypeLocal, nil
	case "p":
		return ServerTypeProxy, nil
	}
	return ServerTypeUnknown, nil
}

func (t ServerType) String() string {
	switch t {
	case ServerTypeDedicated:
		return "dedicated"
	case ServerTypeLocal:
		return "local"
	case ServerTypeProxy:
		return "proxy"
	}
	return "unknown"
}

// OS is the platform a game server reports. Decoded from a one-byte token;
// anything unrecognized maps to OSUnknown.
type OS uint8

const (
	OSUnknown OS = iota
	OSLinux
	OSWindows
	OSMac
)

func parseOS(p *infostring.Parser) (OS, error) {
	s, err := p.Bytes()
	if err != nil {
		return OSUnknown, err
	}
	switch string(s) {
	case "l":
		return OSLinux, nil
	case "w":
		return OSWindows, nil
	case "m":
		return OSMac, nil
	}
	return OSUnknown, nil
}

func (o OS) String() string {
	switch o {
	case OSLinux:
		return "linux"
	case OSWindows:
		return "windows"
	case OSMac:
		return "mac"
	}
	return "unknown"
}

// ServerFlags are the boolean properties a game server reports about itself.
type ServerFlags uint8

const (
	ServerFlagBots ServerFlags = 1 << iota
	ServerFlagPassword
	ServerFlagSecure
	ServerFlagLAN
)

func (f ServerFlags) Has(x ServerFlags) bool {
	return f&x == x
}

func (f *ServerFlags) set(x ServerFlags, v bool) {
	if v {
		*f |= x
	} else {
		*f &^= x
	}
}

// ServerInfo is a decoded registration payload.
type ServerInfo struct {
	Gamedir string
	Map     string
	Version string
	Product string
	Type    ServerType
	OS      OS
	Region  Region
	Proto   uint8
	Players uint8
	Max     uint8
	Flags   ServerFlags
}

// DecodeServerInfo decodes a registration info string. Recognized keys may
// appear in any order and duplicates overwrite; unknown keys are skipped.
// The returned challenge is nil unless a `\challenge\` key was present. The
// tail is the input remaining after the info string, with one leading
// newline consumed if present.
func DecodeServerInfo(src []byte) (challenge *uint32, info ServerInfo, tail []byte, err error) {
	p := infostring.New(src)
	info = ServerInfo{Region: RegionRestOfWorld}

	for {
		name, err := p.Bytes()
		if err != nil {
			if errors.Is(err, infostring.ErrEnd) {
				break
			}
			return nil, info, nil, err
		}

		switch string(name) {
		case "protocol":
			info.Proto, err = p.Uint8()
		case "challenge":
			var v uint32
			if v, err = p.Uint32(); err == nil {
				challenge = &v
			}
		case "players":
			info.Players, err = p.Uint8()
		case "max":
			info.Max, err = p.Uint8()
		case "gamedir":
			info.Gamedir, err = p.String()
		case "map":
			info.Map, err = p.String()
		case "type":
			info.Type, err = parseServerType(p)
		case "os":
			info.OS, err = parseOS(p)
		case "version":
			info.Version, err = p.String()
		case "region":
			info.Region, err = parseRegion(p)
		case "product":
			info.Product, err = p.String()
		case "bots":
			err = parseServerFlag(p, &info.Flags, ServerFlagBots)
		case "password":
			err = parseServerFlag(p, &info.Flags, ServerFlagPassword)
		case "secure":
			err = parseServerFlag(p, &info.Flags, ServerFlagSecure)
		case "lan":
			err = parseServerFlag(p, &info.Flags, ServerFlagLAN)
		default:
			var value []byte
			if value, err = p.Bytes(); err == nil {
				log.Debug().
					Str("key", string(name)).
					Str("value", string(value)).
					Msg("skipping unknown server info field")
			}
		}
		if err != nil {
			return nil, info, nil, err
		}
	}

	tail = p.Rest()
	if len(tail) > 0 && tail[0] == '\n' {
		tail = tail[1:]
	}
	return challenge, info, tail, nil
}

func parseServerFlag(p *infostring.Parser, f *ServerFlags, x ServerFlags) error {
	v, err := p.Bool()
	if err != nil {
		return err
	}
	f.set(x, v)
	return nil
}
