// Command beammeup-send loads a file, fountain-encodes it, and streams
// the resulting symbols out over a Channel — UDP for a local network
// test, or a framed file for an offline "burn frames to disk" run.
package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/cyberian-hacksy/beammeup/internal/config"
	"github.com/cyberian-hacksy/beammeup/pkg/channel"
	"github.com/cyberian-hacksy/beammeup/pkg/encoder"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional, falls back to defaults)")
	filePath := flag.String("file", "", "file to send (overrides config)")
	outputFile := flag.String("output", "", "write framed packets to this file instead of UDP")
	count := flag.Int("count", 0, "number of symbols to emit before stopping (0 = run forever)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *filePath != "" {
		cfg.FilePath = *filePath
	}
	if *outputFile != "" {
		cfg.OutputFile = *outputFile
	}
	if cfg.FilePath == "" {
		fmt.Fprintln(os.Stderr, "no file specified; pass -file or set file: in config")
		os.Exit(1)
	}

	fmt.Printf("[beammeup-send] loading file: %s\n", cfg.FilePath)
	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read file: %v\n", err)
		os.Exit(1)
	}
	digest := sha256.Sum256(data)

	e := encoder.New()
	contentType := mime.TypeByExtension(filepath.Ext(cfg.FilePath))
	if err := e.Load(data, filepath.Base(cfg.FilePath), contentType, digest, cfg.BlockSize); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stage file: %v\n", err)
		os.Exit(1)
	}
	if err := e.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start encoder: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[beammeup-send] K=%d K'=%d B=%d\n", e.K(), e.KPrime(), cfg.BlockSize)

	ch, err := openSendChannel(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open channel: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	e.Subscribe(progressLogger{logEvery: cfg.Logging.ProgressInterval})

	runSendLoop(e, ch, cfg, *count)
}

func openSendChannel(cfg config.Config) (channel.Channel, error) {
	if cfg.OutputFile != "" {
		fmt.Printf("[beammeup-send] writing packets to file: %s\n", cfg.OutputFile)
		return channel.NewFileWriter(cfg.OutputFile)
	}
	fmt.Printf("[beammeup-send] sending to %s:%d\n", cfg.Network.Destination, cfg.Network.Port)
	return channel.NewUDPSender(cfg.Network.BindAddress, cfg.Network.Destination, cfg.Network.Port)
}

func runSendLoop(e *encoder.Encoder, ch channel.Channel, cfg config.Config, count int) {
	seq := encoder.NewSequencer(e.KPrime(), cfg.MetadataInterval)

	var bytesPerSec float64
	if cfg.RateLimitKbps > 0 {
		bytesPerSec = float64(cfg.RateLimitKbps) * 1000.0 / 8.0
	}
	nextSendAt := time.Now()

	var sent uint64
	for count == 0 || int(sent) < count {
		id := seq.Next()
		pkt, err := e.Emit(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[beammeup-send] emit failed: %v\n", err)
			return
		}
		buf := pkt.Bytes()
		if bytesPerSec > 0 {
			now := time.Now()
			if now.Before(nextSendAt) {
				time.Sleep(nextSendAt.Sub(now))
			}
			interval := time.Duration(float64(len(buf)) / bytesPerSec * float64(time.Second))
			nextSendAt = time.Now().Add(interval)
		}
		if err := ch.Send(buf); err != nil {
			fmt.Fprintf(os.Stderr, "[beammeup-send] send failed: %v\n", err)
			return
		}
		sent++
	}
	fmt.Printf("[beammeup-send] done, emitted %d symbols\n", sent)
}

type progressLogger struct {
	logEvery uint32
}

func (p progressLogger) OnEncoderEvent(evt encoder.Event) {
	if p.logEvery == 0 {
		return
	}
	if evt.SymbolID%p.logEvery == 0 {
		fmt.Printf("[beammeup-send] emitted symbol id=%d\n", evt.SymbolID)
	}
}
