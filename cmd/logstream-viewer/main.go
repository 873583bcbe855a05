// Command logstream-viewer is a terminal log viewer: it listens for
// logstream clients, advertises itself over mDNS and renders the
// incoming event stream.
//
// Usage:
//
//	logstream-viewer [flags]
//
// Flags:
//
//	-config   YAML config file (optional; env vars override)
//	-addr     listen address (overrides config)
//	-capture  capture file path (overrides config)
//
// Configuration can also come entirely from the environment
// (LOGSTREAM_* variables).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pterm/pterm"

	"github.com/logstream-protocol/logstream-go/pkg/capture"
	"github.com/logstream-protocol/logstream-go/pkg/discovery"
	"github.com/logstream-protocol/logstream-go/pkg/log"
	"github.com/logstream-protocol/logstream-go/pkg/session"
	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// Config is the viewer configuration, loadable from YAML and
// environment.
type Config struct {
	Address           string `yaml:"address" env:"LOGSTREAM_ADDRESS" env-default:":7788"`
	Name              string `yaml:"name" env:"LOGSTREAM_NAME" env-default:"logstream-viewer"`
	Advertise         bool   `yaml:"advertise" env:"LOGSTREAM_ADVERTISE" env-default:"true"`
	Interface         string `yaml:"interface" env:"LOGSTREAM_INTERFACE"`
	CapturePath       string `yaml:"capture" env:"LOGSTREAM_CAPTURE"`
	CaptureMaxSizeMB  int    `yaml:"capture_max_size_mb" env:"LOGSTREAM_CAPTURE_MAX_SIZE_MB" env-default:"64"`
	CaptureMaxBackups int    `yaml:"capture_max_backups" env:"LOGSTREAM_CAPTURE_MAX_BACKUPS" env-default:"3"`
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	capturePath := flag.String("capture", "", "Capture file path (overrides config)")
	flag.Parse()

	var cfg Config
	var err error
	if *configPath != "" {
		err = cleanenv.ReadConfig(*configPath, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		pterm.Error.Printfln("Failed to load config: %v", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Address = *addr
	}
	if *capturePath != "" {
		cfg.CapturePath = *capturePath
	}

	if err := run(cfg); err != nil {
		pterm.Error.Printfln("%v", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder capture.Recorder = capture.NoopRecorder{}
	if cfg.CapturePath != "" {
		fileRec := capture.NewRotatingRecorder(cfg.CapturePath, cfg.CaptureMaxSizeMB, cfg.CaptureMaxBackups)
		defer fileRec.Close()
		recorder = fileRec
		pterm.Info.Printfln("Recording protocol capture to %s", cfg.CapturePath)
	}

	srv := session.NewServer(session.Config{
		Address:  cfg.Address,
		Recorder: recorder,
		OnPeerConnected: func(p *session.Peer) {
			id := p.Identity()
			pterm.Success.Printfln("Client connected: %s (%s, %s) from %s",
				id.ClientName, id.DeviceName, id.OSName, p.RemoteAddr())
		},
		OnPeerDisconnected: func(p *session.Peer) {
			pterm.Warning.Printfln("Client disconnected: %s", p.Identity().ClientName)
		},
		OnEvent: renderEvent,
		OnError: func(p *session.Peer, err error) {
			pterm.Error.Printfln("%v", err)
		},
	})

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer srv.Stop()
	pterm.Info.Printfln("Listening on %s", srv.Addr())

	if cfg.Advertise {
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Interface: cfg.Interface,
			OnStarted: func() {
				pterm.Info.Printfln("Advertising %q via mDNS", cfg.Name)
			},
		})
		err := adv.Advertise(ctx, &discovery.ViewerInfo{
			Name: cfg.Name,
			Port: uint16(srv.Port()),
		})
		if err != nil {
			// Discovery failure is not fatal; direct connections still work.
			pterm.Warning.Printfln("mDNS advertising failed: %v", err)
		} else {
			defer adv.Stop()
		}
	}

	<-ctx.Done()
	pterm.Info.Printfln("Shutting down")
	return nil
}

// renderEvent prints one client event. Bodies that are not logstream
// events are shown raw.
func renderEvent(p *session.Peer, evt wire.EventPacket) {
	var event log.Event
	if err := json.Unmarshal(evt.Raw, &event); err != nil {
		pterm.Debug.Printfln("[%s] %s", p.Identity().ClientName, evt.Raw)
		return
	}

	line := fmt.Sprintf("[%s]", p.Identity().ClientName)
	if evt.Network {
		line += " [net]"
	}
	if event.Tag != "" {
		line += " " + event.Tag + ":"
	}
	line += " " + event.Message

	switch event.Level {
	case log.LevelError:
		pterm.Error.Printfln("%s", line)
	case log.LevelWarning:
		pterm.Warning.Printfln("%s", line)
	case log.LevelInfo:
		pterm.Info.Printfln("%s", line)
	default:
		pterm.Debug.Printfln("%s", line)
	}
}
