package protocol

// Server is the projection of a registration retained for query matching.
// The strings are owned copies; the registration buffer may be reused.
type Server struct {
	Version string
	Gamedir string
	Map     string
	Flags   FilterFlags
	Region  Region
}

// NewServer builds the retained record for a validated registration.
func NewServer(info *ServerInfo) Server {
	return Server{
		Version: info.Version,
		Gamedir: info.Gamedir,
		Map:     info.Map,
		Flags:   FlagsFromInfo(info),
		Region:  info.Region,
	}
}
