// Command logstream-emit sends synthetic log events to a viewer, either
// at a fixed address or one discovered via mDNS. It is intended for
// exercising viewers and captures end to end.
//
// Usage:
//
//	logstream-emit -addr 192.168.1.10:7788 -count 100
//	logstream-emit -viewer "Studio Viewer" -interval 250ms
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/logstream-protocol/logstream-go/pkg/client"
	"github.com/logstream-protocol/logstream-go/pkg/discovery"
	"github.com/logstream-protocol/logstream-go/pkg/log"
)

const version = "0.1.0"

func main() {
	addr := flag.String("addr", "", "Viewer address (host:port); discovered via mDNS when empty")
	viewerName := flag.String("viewer", "", "Viewer display name to discover (first found when empty)")
	count := flag.Int("count", 0, "Number of events to send (0 = until interrupted)")
	interval := flag.Duration("interval", 500*time.Millisecond, "Delay between events")
	tag := flag.String("tag", "emit", "Event tag")
	network := flag.Bool("network", false, "Send network log events instead of regular ones")
	clientName := flag.String("name", "logstream-emit", "Client name reported in the handshake")
	flag.Parse()

	if err := run(*addr, *viewerName, *count, *interval, *tag, *network, *clientName); err != nil {
		pterm.Error.Printfln("%v", err)
		os.Exit(1)
	}
}

func run(addr, viewerName string, count int, interval time.Duration, tag string, network bool, clientName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr == "" {
		found, err := discoverViewer(ctx, viewerName)
		if err != nil {
			return err
		}
		addr = found
	}

	c := client.New(client.Config{
		Address:    addr,
		Descriptor: client.NewHostDescriptor(clientName, version),
		OnStateChange: func(old, new client.State) {
			pterm.Debug.Printfln("State: %s -> %s", old, new)
			if new == client.StateConnected {
				pterm.Success.Printfln("Connected to %s", addr)
			}
		},
		OnReconnecting: func(attempt int, delay time.Duration) {
			pterm.Warning.Printfln("Reconnecting (attempt %d) in %s", attempt, delay)
		},
		OnError: func(err error) {
			pterm.Error.Printfln("%v", err)
		},
	})
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	defer c.Close()

	levels := []log.Level{log.LevelDebug, log.LevelInfo, log.LevelWarning, log.LevelError}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for count == 0 || sent < count {
		select {
		case <-ctx.Done():
			pterm.Info.Printfln("Interrupted after %d events", sent)
			return flush(c)
		case <-ticker.C:
		}

		evt := log.Event{
			Level:   levels[sent%len(levels)],
			Tag:     tag,
			Message: fmt.Sprintf("synthetic event %d", sent+1),
		}
		if network {
			c.LogNetwork(evt)
		} else {
			c.Log(evt)
		}
		sent++
	}

	pterm.Info.Printfln("Sent %d events", sent)
	return flush(c)
}

// flush gives the client a moment to drain its queue before closing,
// then reports anything left behind.
func flush(c *client.Client) error {
	deadline := time.Now().Add(5 * time.Second)
	for c.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if pending := c.Pending(); pending > 0 {
		pterm.Warning.Printfln("%d events still queued at shutdown", pending)
	}
	if dropped := c.Dropped(); dropped > 0 {
		pterm.Warning.Printfln("%d events dropped due to queue overflow", dropped)
	}
	return nil
}

// discoverViewer browses mDNS for a viewer and returns its dial address.
func discoverViewer(ctx context.Context, name string) (string, error) {
	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{})

	browseCtx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()

	var svc *discovery.ViewerService
	if name != "" {
		pterm.Info.Printfln("Discovering viewer %q via mDNS", name)
		found, err := browser.FindByName(browseCtx, name)
		if err != nil {
			return "", fmt.Errorf("discover viewer %q: %w", name, err)
		}
		svc = found
	} else {
		pterm.Info.Printfln("Discovering viewers via mDNS")
		services, err := browser.Browse(browseCtx)
		if err != nil {
			return "", fmt.Errorf("browse viewers: %w", err)
		}
		for s := range services {
			if len(s.Addresses) > 0 {
				svc = s
				cancel()
				break
			}
		}
		if svc == nil {
			return "", discovery.ErrNotFound
		}
	}

	if len(svc.Addresses) == 0 {
		return "", fmt.Errorf("viewer %q has no resolved addresses", svc.Name)
	}
	addr := net.JoinHostPort(svc.Addresses[0], strconv.Itoa(int(svc.Port)))
	pterm.Success.Printfln("Found viewer %q at %s", svc.Name, addr)
	return addr, nil
}
