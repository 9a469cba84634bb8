// Command specter is a UDP master server for GoldSrc-lineage game browsers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"net/http/pprof"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-envparse"
	"github.com/spf13/pflag"

	"github.com/goldsrcnet/specter/pkg/specter"
)

const version = "0.1.0"

var opt struct {
	Help    bool
	Version bool
	Log     string
	IP      string
	Port    uint16
	Config  string
}

func init() {
	pflag.CommandLine.Init(os.Args[0], pflag.ContinueOnError)
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
	pflag.BoolVarP(&opt.Version, "version", "v", false, "Print the program version")
	pflag.StringVarP(&opt.Log, "log", "l", "", "Set the logging level")
	pflag.StringVarP(&opt.IP, "ip", "i", "", "Set the listen IP address")
	pflag.Uint16VarP(&opt.Port, "port", "p", 0, "Set the listen port")
	pflag.StringVarP(&opt.Config, "config", "c", "", "Set the config (env file) path")
}

func main() {
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if opt.Help || pflag.NArg() != 0 {
		fmt.Printf("usage: %s [options]\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		if opt.Help {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if opt.Version {
		fmt.Printf("specter v%s\n", version)
		os.Exit(0)
	}

	var e []string
	if opt.Config == "" {
		e = os.Environ()
	} else {
		if x, err := readEnv(opt.Config); err == nil {
			e = x
		} else {
			fmt.Fprintf(os.Stderr, "error: read config file: %v\n", err)
			os.Exit(1)
		}
		if v, ok := os.LookupEnv("NOTIFY_SOCKET"); ok {
			e = append(e, "NOTIFY_SOCKET="+v)
		}
	}

	var c specter.Config
	if err := c.UnmarshalEnv(e, false); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse config: %v\n", err)
		os.Exit(1)
	}

	if opt.Log != "" {
		l, err := specter.ParseLogLevel(opt.Log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		c.LogLevel = l
	}
	if opt.IP != "" {
		ip, err := netip.ParseAddr(opt.IP)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid ip address %q\n", opt.IP)
			os.Exit(1)
		}
		c.IP = ip
	}
	if pflag.CommandLine.Changed("port") {
		c.Port = opt.Port
	}

	s, err := specter.NewServer(&c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: initialize server: %v\n", err)
		os.Exit(1)
	}

	if c.DebugAddr != "" {
		dbg := http.NewServeMux()
		dbg.HandleFunc("/debug/pprof/", pprof.Index)
		dbg.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		dbg.HandleFunc("/debug/pprof/profile", pprof.Profile)
		dbg.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		dbg.HandleFunc("/debug/pprof/trace", pprof.Trace)
		dbg.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4")
			metrics.WriteProcessMetrics(w)
			s.Master.WritePrometheus(w)
		})
		go func() {
			fmt.Fprintf(os.Stderr, "warning: running insecure debug server on %q\n", c.DebugAddr)
			if err := http.ListenAndServe(c.DebugAddr, dbg); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to start debug server: %v\n", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hch := make(chan os.Signal, 1)
	signal.Notify(hch, syscall.SIGHUP)

	go func() {
		for range hch {
			s.HandleSIGHUP()
		}
	}()

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: run server: %v\n", err)
		os.Exit(1)
	}
}

func readEnv(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, err
	}

	var r []string
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}
