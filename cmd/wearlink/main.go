package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/wearlink/internal/audio"
	"github.com/chaz8081/wearlink/internal/ble"
	"github.com/chaz8081/wearlink/internal/config"
	"github.com/chaz8081/wearlink/internal/device"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/wearlink/config.yaml)")
	kindFlag := flag.String("kind", "pulse", "device family: pulse, pulse-cam, nimbus, coral, petal, vega")
	scanOnly := flag.Bool("scan", false, "scan for devices and exit")
	addr := flag.String("connect", "", "address of the device to connect to")
	wavPath := flag.String("wav", "", "write captured PCM audio to this WAV file")
	duration := flag.Duration("duration", 0, "stop capturing after this long (0 = until Ctrl+C)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	setupLogging(cfg.LogLevel)

	kind := device.Kind(*kindFlag)
	switch kind {
	case device.KindPulse, device.KindPulseCam, device.KindNimbus,
		device.KindCoral, device.KindPetal, device.KindVega:
	default:
		log.Fatalf("unknown device kind %q", *kindFlag)
	}

	adapter := ble.NewHardwareAdapter()

	if *scanOnly || *addr == "" {
		if err := runScan(adapter, kind, cfg.Scan.Timeout); err != nil {
			log.Fatalf("scan: %v", err)
		}
		return
	}

	if err := runCapture(adapter, kind, *addr, cfg, *wavPath, *duration); err != nil {
		log.Fatalf("capture: %v", err)
	}
}

// runScan lists nearby devices advertising the family's service.
func runScan(adapter ble.Adapter, kind device.Kind, timeout time.Duration) error {
	log.Printf("Scanning for %s devices (%s)...", kind, timeout)
	found, err := ble.Scan(adapter, device.ServiceUUID(kind), timeout)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		log.Println("No devices found")
		return nil
	}
	for _, p := range found {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %s  %s  RSSI %d\n", p.Addr, name, p.RSSI)
	}
	return nil
}

// runCapture connects to one device and streams its audio until the
// duration elapses or the process is interrupted.
func runCapture(adapter ble.Adapter, kind device.Kind, addr string, cfg *config.Config, wavPath string, duration time.Duration) error {
	dev := &device.Device{
		ID:   uuid.New(),
		Addr: addr,
		Kind: kind,
	}
	conn := device.New(dev, adapter, device.Tuning{
		CommandTimeout: cfg.Device.CommandTimeout,
		SettleDelay:    cfg.Device.SettleDelay,
		SetupRetries:   cfg.Device.SetupRetries,
		SetupBackoff:   cfg.Device.SetupBackoff,
		WiFiTimeout:    cfg.Device.WiFiTimeout,
	})
	conn.SetDelegate(&logDelegate{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %s, stopping...", sig)
		cancel()
	}()

	log.Printf("Connecting to %s...", addr)
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer conn.Disconnect()

	d := conn.Device()
	log.Printf("Connected: %s (model %q, firmware %q)", d.Kind, d.Model, d.Firmware)
	if battery := conn.BatteryLevel(ctx); battery >= 0 {
		log.Printf("Battery: %d%%", battery)
	}

	codec := conn.AudioCodec()
	log.Printf("Audio codec: %s", codec)

	frames, err := conn.AudioFrames(ctx)
	if err != nil {
		return err
	}

	var sink *audio.WAVSink
	var raw *os.File
	switch {
	case wavPath != "" && codec == device.CodecPCM8:
		sink, err = audio.NewWAVSink(wavPath, int(cfg.Audio.SampleRate), int(cfg.Audio.Channels))
		if err != nil {
			return err
		}
		defer sink.Close()
		log.Printf("Writing WAV to %s", wavPath)
	case wavPath != "":
		// Compressed codecs are dumped as raw frames; transcoding is a
		// job for external tooling.
		rawPath := wavPath[:len(wavPath)-len(filepath.Ext(wavPath))] + "." + string(codec)
		raw, err = os.Create(rawPath)
		if err != nil {
			return fmt.Errorf("creating raw dump: %w", err)
		}
		defer raw.Close()
		log.Printf("Codec %s is not PCM, dumping raw frames to %s", codec, rawPath)
	}

	var frameCount, byteCount int
	for frame := range frames {
		frameCount++
		byteCount += len(frame)
		switch {
		case sink != nil:
			if err := sink.WritePCM8(frame); err != nil {
				return err
			}
		case raw != nil:
			if _, err := raw.Write(frame); err != nil {
				return fmt.Errorf("writing raw frame: %w", err)
			}
		}
	}

	log.Printf("Captured %d frames (%d bytes)", frameCount, byteCount)
	return nil
}

// logDelegate reports connection events on the log.
type logDelegate struct{}

func (logDelegate) ConnectionLost(dev *device.Device) {
	log.Printf("Connection to %s lost", dev.Addr)
}

func (logDelegate) FallDetected(dev *device.Device, magnitude float64) {
	log.Printf("Fall detected on %s (magnitude %.1f)", dev.Addr, magnitude)
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	return config.Default(), nil
}

func setupLogging(level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(level),
	})))
}
