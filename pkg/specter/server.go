package specter

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/goldsrcnet/specter/pkg/master"
)

const logTimeFormat = "[2006-01-02 15:04:05]"

type Server struct {
	Logger       zerolog.Logger
	Master       *master.Master
	NotifySocket string

	reload []func()
}

// NewServer configures a new server using c, which is assumed to be
// initialized to default or configured values (as done by UnmarshalEnv).
// Binding the socket happens here, so a bad listen address fails fast.
func NewServer(c *Config) (*Server, error) {
	var s Server

	if l, fn, err := configureLogging(c); err == nil {
		s.Logger = l
		s.reload = append(s.reload, fn)
	} else {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	// the protocol decoders log skipped fields through the global logger
	log.Logger = s.Logger

	m, err := master.New(master.Config{
		Addr:         netip.AddrPortFrom(c.IP, c.Port),
		ChallengeTTL: c.TimeoutChallenge,
		ServerTTL:    c.TimeoutServer,
	}, s.Logger.With().Str("component", "master").Logger())
	if err != nil {
		return nil, err
	}
	s.Master = m

	s.NotifySocket = c.NotifySocket
	return &s, nil
}

// Run runs the master until ctx is canceled. It must only ever be called
// once.
func (s *Server) Run(ctx context.Context) error {
	s.Logger.Log().Msgf("starting master server on %s", s.Master.LocalAddr())
	go s.sdnotify("READY=1")
	defer s.sdnotify("STOPPING=1")
	return s.Master.Run(ctx)
}

// HandleSIGHUP reopens the log file.
func (s *Server) HandleSIGHUP() {
	s.sdnotify("RELOADING=1")
	defer s.sdnotify("READY=1")

	for _, fn := range s.reload {
		if fn != nil {
			fn()
		}
	}
}

func configureLogging(c *Config) (l zerolog.Logger, reopen func(), err error) {
	cw := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: logTimeFormat,
		NoColor:    true,
	}
	if !c.LogTime {
		cw.PartsOrder = []string{zerolog.LevelFieldName, zerolog.MessageFieldName}
	}
	outputs := []io.Writer{cw}

	if fn := c.LogFile; fn != "" {
		x := newZerologWriterLevel(nil, c.LogFileLevel)
		if fn, err = filepath.Abs(fn); err != nil {
			err = fmt.Errorf("resolve log file: %w", err)
			return
		}
		reopen = func() {
			x.SwapWriter(func(old io.Writer) io.Writer {
				if o, ok := old.(io.Closer); ok {
					o.Close()
				}
				f, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: open log file: %v\n", err)
					return nil
				}
				return f
			})
		}
		reopen()
		outputs = append(outputs, x)
	}

	var out io.Writer
	if len(outputs) == 1 {
		out = outputs[0]
	} else {
		out = zerolog.MultiLevelWriter(outputs...)
	}
	l = zerolog.New(out).Level(c.LogLevel).With().Timestamp().Logger()
	return
}

func (s *Server) sdnotify(state string) (bool, error) {
	if s.NotifySocket == "" {
		return false, nil
	}

	socketAddr := &net.UnixAddr{
		Name: s.NotifySocket,
		Net:  "unixgram",
	}

	conn, err := net.DialUnix(socketAddr.Net, nil, socketAddr)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err = conn.Write([]byte(state)); err != nil {
		return false, err
	}
	return true, nil
}
