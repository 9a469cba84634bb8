package protocol

import (
	"errors"

	"github.com/goldsrcnet/specter/pkg/infostring"
)

var ErrInvalidRegion = errors.New("invalid region")

// Region is the coarse geographic bucket a game server declares at
// registration. It is one raw byte in query packets and a signed or unsigned
// decimal integer in info strings (-1 encodes RestOfWorld).
type Region uint8

const (
	RegionUSEastCoast  Region = 0x00
	RegionUSWestCoast  Region = 0x01
	RegionSouthAmerica Region = 0x02
	RegionEurope       Region = 0x03
	RegionAsia         Region = 0x04
	RegionAustralia    Region = 0x05
	RegionMiddleEast   Region = 0x06
	RegionAfrica       Region = 0x07
	RegionRestOfWorld  Region = 0xff
)

// ParseRegion converts a raw wire byte into a Region.
func ParseRegion(b byte) (Region, error) {
	switch r := Region(b); r {
	case RegionUSEastCoast, RegionUSWestCoast, RegionSouthAmerica,
		RegionEurope, RegionAsia, RegionAustralia, RegionMiddleEast,
		RegionAfrica, RegionRestOfWorld:
		return r, nil
	}
	return 0, ErrInvalidRegion
}

func parseRegion(p *infostring.Parser) (Region, error) {
	v, err := p.Uint8()
	if err != nil {
		return 0, err
	}
	return ParseRegion(v)
}

func (r Region) String() string {
	switch r {
	case RegionUSEastCoast:
		return "us-east"
	case RegionUSWestCoast:
		return "us-west"
	case RegionSouthAmerica:
		return "south-america"
	case RegionEurope:
		return "europe"
	case RegionAsia:
		return "asia"
	case RegionAustralia:
		return "australia"
	case RegionMiddleEast:
		return "middle-east"
	case RegionAfrica:
		return "africa"
	case RegionRestOfWorld:
		return "rest-of-world"
	}
	return "invalid"
}
