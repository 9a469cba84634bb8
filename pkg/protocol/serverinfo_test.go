package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldsrcnet/specter/pkg/infostring"
)

func TestParseServerType(t *testing.T) {
	for _, tt := range []struct {
		src  string
		want ServerType
	}{
		{"\\d\\", ServerTypeDedicated},
		{"\\l\\", ServerTypeLocal},
		{"\\p\\", ServerTypeProxy},
		{"\\u\\", ServerTypeUnknown},
		{"\\dd\\", ServerTypeUnknown},
	} {
		v, err := parseServerType(infostring.New([]byte(tt.src)))
		require.NoError(t, err, "src %q", tt.src)
		assert.Equal(t, tt.want, v, "src %q", tt.src)
	}
}

func TestParseOS(t *testing.T) {
	for _, tt := range []struct {
		src  string
		want OS
	}{
		{"\\l\\", OSLinux},
		{"\\w\\", OSWindows},
		{"\\m\\", OSMac},
		{"\\u\\", OSUnknown},
	} {
		v, err := parseOS(infostring.New([]byte(tt.src)))
		require.NoError(t, err, "src %q", tt.src)
		assert.Equal(t, tt.want, v, "src %q", tt.src)
	}
}

func TestParseRegion(t *testing.T) {
	for _, tt := range []struct {
		src  string
		want Region
	}{
		{"\\0\\", RegionUSEastCoast},
		{"\\1\\", RegionUSWestCoast},
		{"\\2\\", RegionSouthAmerica},
		{"\\3\\", RegionEurope},
		{"\\4\\", RegionAsia},
		{"\\5\\", RegionAustralia},
		{"\\6\\", RegionMiddleEast},
		{"\\7\\", RegionAfrica},
		{"\\-1\\", RegionRestOfWorld},
	} {
		v, err := parseRegion(infostring.New([]byte(tt.src)))
		require.NoError(t, err, "src %q", tt.src)
		assert.Equal(t, tt.want, v, "src %q", tt.src)
	}

	_, err := parseRegion(infostring.New([]byte("\\-2\\")))
	assert.ErrorIs(t, err, ErrInvalidRegion)

	_, err = parseRegion(infostring.New([]byte("\\8\\")))
	assert.ErrorIs(t, err, ErrInvalidRegion)

	_, err = parseRegion(infostring.New([]byte("\\u\\")))
	assert.ErrorIs(t, err, infostring.ErrInvalidInteger)
}

func TestDecodeServerInfo(t *testing.T) {
	src := []byte("\\protocol\\47" +
		"\\challenge\\12345678" +
		"\\players\\16" +
		"\\max\\32" +
		"\\bots\\1" +
		"\\invalid_field\\field_value" +
		"\\gamedir\\cstrike" +
		"\\map\\de_dust" +
		"\\type\\d" +
		"\\password\\1" +
		"\\os\\l" +
		"\\secure\\1" +
		"\\lan\\1" +
		"\\version\\1.1.2.5" +
		"\\region\\-1" +
		"\\product\\cstrike" +
		"\ntail")

	challenge, info, tail, err := DecodeServerInfo(src)
	require.NoError(t, err)
	require.NotNil(t, challenge)
	assert.Equal(t, uint32(12345678), *challenge)
	assert.Equal(t, "tail", string(tail))
	assert.Equal(t, ServerInfo{
		Gamedir: "cstrike",
		Map:     "de_dust",
		Version: "1.1.2.5",
		Product: "cstrike",
		Type:    ServerTypeDedicated,
		OS:      OSLinux,
		Region:  RegionRestOfWorld,
		Proto:   47,
		Players: 16,
		Max:     32,
		Flags:   ServerFlagBots | ServerFlagPassword | ServerFlagSecure | ServerFlagLAN,
	}, info)
}

func TestDecodeServerInfoDefaults(t *testing.T) {
	challenge, info, tail, err := DecodeServerInfo(nil)
	require.NoError(t, err)
	assert.Nil(t, challenge)
	assert.Empty(t, tail)
	assert.Equal(t, ServerInfo{Region: RegionRestOfWorld}, info)
}

func TestDecodeServerInfoDuplicateOverwrites(t *testing.T) {
	_, info, _, err := DecodeServerInfo([]byte("\\map\\de_dust\\map\\cs_office"))
	require.NoError(t, err)
	assert.Equal(t, "cs_office", info.Map)
}

func TestDecodeServerInfoValueError(t *testing.T) {
	_, _, _, err := DecodeServerInfo([]byte("\\players\\many"))
	assert.ErrorIs(t, err, infostring.ErrInvalidInteger)

	// a key with no value terminates with End, which propagates
	_, _, _, err = DecodeServerInfo([]byte("\\players"))
	assert.ErrorIs(t, err, infostring.ErrEnd)
}

func TestFlagsFromInfo(t *testing.T) {
	_, info, _, err := DecodeServerInfo([]byte("\\type\\d\\os\\l\\players\\4\\max\\8\\secure\\1"))
	require.NoError(t, err)

	flags := FlagsFromInfo(&info)
	assert.Equal(t, FilterDedicated|FilterSecure|FilterLinux|FilterNotEmpty, flags)

	_, info, _, err = DecodeServerInfo([]byte("\\type\\p\\players\\8\\max\\8\\password\\1\\lan\\1\\bots\\1"))
	require.NoError(t, err)

	flags = FlagsFromInfo(&info)
	assert.Equal(t, FilterProxy|FilterPassword|FilterNotEmpty|FilterFull|FilterLAN|FilterBots, flags)

	// empty info: zero players is both "empty" and "full" (0 >= 0)
	_, info, _, err = DecodeServerInfo(nil)
	require.NoError(t, err)
	assert.Equal(t, FilterFull|FilterNoPlayers, FlagsFromInfo(&info))
}
