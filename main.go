// ABOUTME: Entry point for the AudioLink device daemon
// ABOUTME: Parses CLI flags, opens the link, and runs the bridge
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AudioLink-Protocol/audiolink-go/internal/device"
	"github.com/AudioLink-Protocol/audiolink-go/internal/discovery"
	"github.com/AudioLink-Protocol/audiolink-go/internal/transport"
	"github.com/AudioLink-Protocol/audiolink-go/internal/version"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio/input"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio/output"
)

var (
	serialDev  = flag.String("serial", "", "Serial port to serve the link on (e.g. /dev/ttyUSB0)")
	baud       = flag.Int("baud", transport.DefaultBaud, "Serial baud rate")
	listenAddr = flag.String("listen", "", "Serve the link over WebSocket on this address (e.g. :8931)")
	name       = flag.String("name", "", "Device name for mDNS (default: hostname-audiolink)")
	outBackend = flag.String("output", "oto", "Playback backend: oto or malgo")
	inBackend  = flag.String("input", "malgo", "Capture backend: malgo")
	logFile    = flag.String("log-file", "audiolink-device.log", "Log file path")
	quiet      = flag.Bool("quiet", false, "Log to file only, not stdout")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()
	if *quiet {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if (*serialDev == "") == (*listenAddr == "") {
		log.Fatal("exactly one of -serial or -listen is required")
	}

	deviceName := *name
	if deviceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		deviceName = fmt.Sprintf("%s-audiolink", hostname)
	}

	log.Printf("Starting %s device %s (v%s)", version.Product, deviceName, version.Version)

	out, err := output.New(*outBackend)
	if err != nil {
		log.Fatalf("playback backend: %v", err)
	}
	in, err := input.New(*inBackend)
	if err != nil {
		log.Fatalf("capture backend: %v", err)
	}

	var conn transport.Link
	if *serialDev != "" {
		conn, err = transport.OpenSerial(*serialDev, *baud)
		if err != nil {
			log.Fatalf("serial link: %v", err)
		}
		log.Printf("Serving link on %s at %d baud", *serialDev, *baud)
	} else {
		port := wsPort(*listenAddr)
		disc := discovery.NewManager(discovery.Config{DeviceName: deviceName, Port: port})
		if err := disc.Advertise(); err != nil {
			log.Printf("mDNS advertise failed: %v", err)
		}
		defer disc.Stop()

		log.Printf("Waiting for a host on %s", *listenAddr)
		conn, err = transport.ListenWS(*listenAddr)
		if err != nil {
			log.Fatalf("websocket link: %v", err)
		}
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Printf("Shutting down")
		cancel()
	}()

	dev := device.New(conn, in, out)
	if err := dev.Run(ctx); err != nil {
		log.Fatalf("device stopped: %v", err)
	}
}

// wsPort extracts the numeric port from a listen address for mDNS
func wsPort(addr string) int {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0
	}
	port := 0
	fmt.Sscanf(addr[idx+1:], "%d", &port)
	return port
}
