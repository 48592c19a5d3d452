// txd is the transmitting-end daemon: it owns one nRF24L01 radio, drives
// an internal/fhss.TXLink, and exposes its running state as Prometheus
// metrics.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rigou/nRF24L01-FHSS/internal/config"
	"github.com/rigou/nRF24L01-FHSS/internal/fhss"
	"github.com/rigou/nRF24L01-FHSS/internal/gpio"
	"github.com/rigou/nRF24L01-FHSS/internal/logging"
	"github.com/rigou/nRF24L01-FHSS/internal/metrics"
	"github.com/rigou/nRF24L01-FHSS/internal/protocol"
	"github.com/rigou/nRF24L01-FHSS/internal/settings"
	"github.com/rigou/nRF24L01-FHSS/nrf24"
)

// systemEntropy draws session-key candidates from crypto/rand, satisfying
// fhss.Entropy.
type systemEntropy struct{}

func (systemEntropy) Uint16() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is unrecoverable on this platform; panicking
		// here matches the original firmware's behaviour of halting rather
		// than pairing with a predictable key.
		panic(fmt.Sprintf("txd: reading entropy: %v", err))
	}
	return binary.LittleEndian.Uint16(b[:])
}

// version is set at build time via -ldflags.
var version = "dev"

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "txd",
		Short:         "nRF24L01-FHSS transmitting-end daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "/etc/nrf24fhss/txd.yaml", "path to configuration file (YAML)")

	root.AddCommand(runCmd())
	root.AddCommand(pairCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print txd build information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("txd %s\n", version)
		},
	}
}

func pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair",
		Short: "Force the link back into PAIRING on next run",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store := settings.NewFileStore(cfg.Settings.Path)
			return store.Save(settings.Record{})
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the TX link until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath)
		},
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("txd: %w", err)
	}

	logger := logging.New(cfg.Log.Level)
	nrf24.SetLogger(logger)

	radio, err := nrf24.New(nrf24.Config{
		RadioConfig: nrf24.RadioConfig{
			ChannelNumber: cfg.Link.MonoChan,
			RxAddr:        deviceAddress(cfg.Link.RXID),
			PALevel:       nrf24.PALevel(cfg.Link.PALevel),
			AddressWidth:  3,
		},
		SpiBusPath: cfg.Radio.SPIBus,
	})
	if err != nil {
		return fmt.Errorf("txd: opening radio: %w", err)
	}
	defer radio.PowerDown()

	store := settings.NewFileStore(cfg.Settings.Path)
	collector := metrics.NewCollector(nil)

	link, err := fhss.NewTXLink(cfg.Link.ToFHSS(), radio, fhss.NewSystemClock(), systemEntropy{}, store, logger)
	if err != nil {
		return fmt.Errorf("txd: constructing link: %w", err)
	}

	pairingControl, closeGPIO, err := openPairingControl(cfg.Button)
	if err != nil {
		return fmt.Errorf("txd: %w", err)
	}
	defer closeGPIO()

	go serveMetrics(cfg.Metrics.Addr, cfg.Metrics.Path, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	period := time.Second / time.Duration(cfg.Link.TransDgs)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	if link.Mode() == fhss.ModePairing {
		collector.IncPairingAttempt("tx")
	}

	consumeAck := func(payload [protocol.AckValues]uint16) {
		collector.ObserveErrorCount("tx", int(payload[0]))
	}

	logger.Info("txd started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("txd shutting down")
			return nil
		case <-ticker.C:
			prevMode := link.Mode()
			collector.SetMode("tx", int(prevMode))

			if err := pairingControl.Poll(link.RequestPairing); err != nil {
				logger.Error(fmt.Sprintf("pairing button poll failed: %v", err))
			}

			if err := link.Tick(fillUserPayload, consumeAck); err != nil {
				logger.Error(fmt.Sprintf("tick failed: %v", err))
			}

			if mode := link.Mode(); mode == fhss.ModePairing && prevMode != fhss.ModePairing {
				collector.IncPairingAttempt("tx")
			}
		}
	}
}

// openPairingControl opens the pairing button and status LED lines named by
// cfg, if configured, and returns a PairingControl plus a cleanup func that
// closes whichever lines were opened. Either or both lines may be absent
// (empty config string), in which case PairingControl.Poll is a no-op.
func openPairingControl(cfg config.ButtonConfig) (*gpio.PairingControl, func(), error) {
	var (
		button  *gpio.Button
		led     *gpio.LED
		closers []func() error
	)

	if cfg.Line != "" {
		chip, offset, err := gpio.ParseLine(cfg.Line)
		if err != nil {
			return nil, nil, fmt.Errorf("opening pairing button: %w", err)
		}
		line, err := gpio.OpenButtonLine(chip, offset)
		if err != nil {
			return nil, nil, fmt.Errorf("opening pairing button: %w", err)
		}
		closers = append(closers, line.Close)
		holdFor := time.Duration(cfg.HoldSec) * time.Second
		button = gpio.NewButton(line, holdFor)
	}

	if cfg.LEDLine != "" {
		chip, offset, err := gpio.ParseLine(cfg.LEDLine)
		if err != nil {
			return nil, nil, fmt.Errorf("opening status LED: %w", err)
		}
		line, err := gpio.OpenLEDLine(chip, offset)
		if err != nil {
			return nil, nil, fmt.Errorf("opening status LED: %w", err)
		}
		closers = append(closers, line.Close)
		led = gpio.NewLED(line)
	}

	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	return gpio.NewPairingControl(button, led), closeAll, nil
}

func fillUserPayload(p *[protocol.MsgValues]uint16) {
	// Placeholder payload source: a production deployment wires this to
	// whatever upstream data the link is carrying.
	_ = p
}

func deviceAddress(id uint16) nrf24.Address {
	var a nrf24.Address
	a[0] = byte(id)
	a[1] = byte(id >> 8)
	return a
}

func serveMetrics(addr, path string, logger nrf24.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error(fmt.Sprintf("metrics server stopped: %v", err))
	}
}
