// Command beammeup-recv listens on a Channel — UDP or a framed file —
// feeds every packet it sees to a decoder, and writes the reconstructed
// file to disk once decoding completes and verifies.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cyberian-hacksy/beammeup/internal/config"
	"github.com/cyberian-hacksy/beammeup/pkg/channel"
	"github.com/cyberian-hacksy/beammeup/pkg/decoder"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional, falls back to defaults)")
	inputFile := flag.String("input", "", "read framed packets from this file instead of UDP")
	outputDir := flag.String("output-dir", "", "directory to write the reconstructed file to (overrides config)")
	flag.Parse()

	cfg := config.DefaultReceiverConfig()
	if *configPath != "" {
		loaded, err := config.LoadReceiver(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *inputFile != "" {
		cfg.InputFile = *inputFile
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}

	ch, err := openReceiveChannel(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open channel: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	d := decoder.New()
	d.Subscribe(progressLogger{logEvery: cfg.Logging.ProgressInterval})

	if err := runReceiveLoop(d, ch); err != nil {
		fmt.Fprintf(os.Stderr, "[beammeup-recv] %v\n", err)
		os.Exit(1)
	}

	if !d.IsComplete() {
		fmt.Fprintln(os.Stderr, "[beammeup-recv] channel closed before decode completed")
		os.Exit(1)
	}
	if !d.Verify() {
		fmt.Fprintln(os.Stderr, "[beammeup-recv] digest mismatch, refusing to write output")
		os.Exit(1)
	}

	data, err := d.Reconstruct()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[beammeup-recv] reconstruct failed: %v\n", err)
		os.Exit(1)
	}
	outPath := filepath.Join(cfg.OutputDir, d.Metadata().Filename)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "[beammeup-recv] write failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[beammeup-recv] wrote %s (%d bytes)\n", outPath, len(data))
}

func openReceiveChannel(cfg config.ReceiverConfig) (channel.Channel, error) {
	if cfg.InputFile != "" {
		fmt.Printf("[beammeup-recv] reading packets from file: %s\n", cfg.InputFile)
		return channel.NewFileReader(cfg.InputFile)
	}
	fmt.Printf("[beammeup-recv] listening on %s:%d\n", cfg.Network.BindAddress, cfg.Network.Port)
	return channel.NewUDPReceiver(cfg.Network.BindAddress, cfg.Network.Port)
}

func runReceiveLoop(d *decoder.Decoder, ch channel.Channel) error {
	for {
		buf, err := ch.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("receive failed: %w", err)
		}

		outcome := d.Receive(buf)
		if outcome == decoder.NewSession {
			fmt.Println("[beammeup-recv] foreign session id seen, resetting and re-feeding")
			d.Reset()
			d.Receive(buf)
		}
		if d.IsComplete() {
			return nil
		}
	}
}

type progressLogger struct {
	logEvery uint32
}

func (p progressLogger) OnDecoderEvent(evt decoder.Event) {
	if p.logEvery == 0 {
		return
	}
	switch evt.Kind {
	case decoder.EventComplete:
		fmt.Println("[beammeup-recv] decode complete")
	case decoder.EventAccepted:
		if evt.SymbolID%p.logEvery == 0 {
			fmt.Printf("[beammeup-recv] accepted symbol id=%d\n", evt.SymbolID)
		}
	}
}
