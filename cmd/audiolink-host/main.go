// ABOUTME: Entry point for the AudioLink host tool
// ABOUTME: Connects to a device, then plays, records, or runs the TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AudioLink-Protocol/audiolink-go/internal/discovery"
	"github.com/AudioLink-Protocol/audiolink-go/internal/host"
	"github.com/AudioLink-Protocol/audiolink-go/internal/session"
	"github.com/AudioLink-Protocol/audiolink-go/internal/transport"
	"github.com/AudioLink-Protocol/audiolink-go/internal/ui"
	"github.com/AudioLink-Protocol/audiolink-go/internal/version"
)

var (
	serialDev = flag.String("serial", "", "Serial port the device is on (e.g. /dev/ttyUSB0)")
	baud      = flag.Int("baud", transport.DefaultBaud, "Serial baud rate")
	wsURL     = flag.String("connect", "", "WebSocket URL of the device (e.g. ws://host:8931/)")
	discover  = flag.Bool("discover", false, "Find the device via mDNS")
	playFile  = flag.String("play", "", "Audio file to stream (.mp3, .wav, .flac)")
	useOpus   = flag.Bool("opus", false, "Opus-encode WAV/FLAC playback")
	recordTo  = flag.String("record", "", "Record microphone audio to this WAV file")
	seconds   = flag.Int("seconds", 10, "Recording duration")
	logFile   = flag.String("log-file", "audiolink-host.log", "Log file path")
	noTUI     = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	oneShot := *playFile != "" || *recordTo != ""
	useTUI := !*noTUI && !oneShot

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()
	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s host (v%s)", version.Product, version.Version)

	conn, deviceName, err := connect()
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	client := host.NewClient(conn)
	defer client.Close()

	mode, err := client.Handshake()
	if err != nil {
		log.Fatalf("handshake: %v", err)
	}
	log.Printf("Device %s is %s", deviceName, mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	switch {
	case *playFile != "":
		if err := play(ctx, client, *playFile); err != nil {
			log.Fatalf("playback: %v", err)
		}
	case *recordTo != "":
		recCtx, recCancel := context.WithTimeout(ctx, time.Duration(*seconds)*time.Second)
		defer recCancel()
		log.Printf("Recording %ds to %s", *seconds, *recordTo)
		if err := client.RecordTo(recCtx, *recordTo); err != nil {
			log.Fatalf("recording: %v", err)
		}
	case useTUI:
		runTUI(ctx, cancel, client, deviceName, mode)
	default:
		<-ctx.Done()
	}
}

func play(ctx context.Context, client *host.Client, path string) error {
	if *useOpus {
		return client.PlayFileOpus(ctx, path)
	}
	return client.PlayFile(ctx, path)
}

// connect opens the link per the flags: explicit serial, explicit
// WebSocket URL, or mDNS discovery.
func connect() (transport.Link, string, error) {
	switch {
	case *serialDev != "":
		conn, err := transport.OpenSerial(*serialDev, *baud)
		return conn, *serialDev, err

	case *wsURL != "":
		conn, err := transport.DialWS(*wsURL)
		return conn, *wsURL, err

	case *discover:
		disc := discovery.NewManager(discovery.Config{})
		if err := disc.Browse(); err != nil {
			return nil, "", err
		}
		defer disc.Stop()

		log.Printf("Browsing for devices...")
		select {
		case dev := <-disc.Devices():
			url := fmt.Sprintf("ws://%s/", dev.Addr())
			conn, err := transport.DialWS(url)
			return conn, dev.Name, err
		case <-time.After(10 * time.Second):
			return nil, "", fmt.Errorf("no device found via mDNS")
		}

	default:
		return nil, "", fmt.Errorf("one of -serial, -connect, or -discover is required")
	}
}

// runTUI drives the client from keyboard actions until the user quits
func runTUI(ctx context.Context, cancel context.CancelFunc, client *host.Client, deviceName string, mode session.Mode) {
	display := ui.New()

	connected := true
	display.Update(ui.StatusMsg{Connected: &connected, DeviceName: deviceName, Mode: &mode})

	go func() {
		recording := false
		var recCancel context.CancelFunc

		report := func(m session.Mode, errText string) {
			display.Update(ui.StatusMsg{Mode: &m, Err: errText})
		}

		for {
			select {
			case <-ctx.Done():
				return
			case action, ok := <-display.Actions():
				if !ok {
					return
				}
				switch action {
				case ui.ActionToggleRecord:
					if recording {
						recCancel()
						recording = false
						report(session.ModeIdle, "")
						continue
					}
					path := fmt.Sprintf("capture-%d.wav", time.Now().Unix())
					var recCtx context.Context
					recCtx, recCancel = context.WithCancel(ctx)
					recording = true
					report(session.ModeRecording, "")
					go func() {
						if err := client.RecordTo(recCtx, path); err != nil {
							report(session.ModeIdle, err.Error())
						}
					}()

				case ui.ActionPlay:
					if *playFile == "" {
						report(mode, "no file given (run with -play)")
						continue
					}
					playing := session.ModePlaying
					display.Update(ui.StatusMsg{Mode: &playing, Transfer: *playFile})
					go func() {
						if err := play(ctx, client, *playFile); err != nil && ctx.Err() == nil {
							report(session.ModeIdle, err.Error())
							return
						}
						report(session.ModeIdle, "")
					}()

				case ui.ActionStopPlay:
					if err := client.StopPlay(); err != nil {
						report(mode, err.Error())
					} else {
						report(session.ModeIdle, "")
					}

				case ui.ActionQuit:
					if recording {
						recCancel()
					}
					cancel()
					return
				}
			}
		}
	}()

	if err := display.Run(); err != nil {
		log.Printf("TUI error: %v", err)
	}
	cancel()
}
