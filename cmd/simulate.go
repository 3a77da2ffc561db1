package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/seedkey"
	"github.com/luma/xcpflash/simulator"
)

var (
	// The host to listen on
	simHost string

	// The port to listen for XCP on TCP/IP hosts on
	simPort int

	// The port to listen for http requests on
	simHTTPPort int

	simConfig    = simulator.DefaultConfig()
	simProtected bool
	simMotorola  bool
	simFlashFile string
)

func init() {
	flags := SimulateCmd.Flags()

	flags.StringVarP(&simHost, "listen", "a", "0.0.0.0", "The host to listen on")
	flags.IntVarP(&simPort, "listen-port", "p", 1000, "The port to listen for XCP connections on")
	flags.IntVar(&simHTTPPort, "http-port", 7362, "The port to listen to HTTP requests on, 0 disables HTTP")

	flags.IntVar(&simConfig.MaxCto, "max-cto", simConfig.MaxCto, "MAX_CTO reported on CONNECT")
	flags.IntVar(&simConfig.MaxDto, "max-dto", simConfig.MaxDto, "MAX_DTO reported on CONNECT")
	flags.IntVar(&simConfig.MaxProgCto, "max-prog-cto", simConfig.MaxProgCto, "MAX_CTO_PGM reported on PROGRAM_START")
	flags.BoolVar(&simMotorola, "motorola", false, "Use Motorola byte order")
	flags.BoolVar(&simProtected, "protected", false, "Protect programming with the seed/key algorithm")
	flags.IntVar(&simConfig.SeedLength, "seed-length", simConfig.SeedLength, "Length of the seeds handed out")
	flags.Uint32Var(&simConfig.InfoTableAddress, "info-table-address", 0, "Address of the firmware info table")
	flags.Uint16Var(&simConfig.InfoTableLength, "info-table-length", 0, "Length of the firmware info table, 0 disables it")
	flags.BoolVar(&simConfig.LateConnectResponse, "late-connect", false, "Answer the first GET_STATUS with a late CONNECT response too")
	flags.StringVar(&simFlashFile, "flash", "", "JSON file the flash is loaded from and saved to on exit")
}

var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated XCP on TCP/IP bootloader",
	Long: `Run a simulated XCP on TCP/IP bootloader

The flash is kept in memory. It can be inspected and replaced over HTTP
with GET and PUT /memory.

Usage
	xcpflash simulate --protected --info-table-address 0x08000100 --info-table-length 16

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		if simMotorola {
			simConfig.Order = protocol.BigEndian
		}

		if simProtected {
			var secret []byte
			if conf.SeedKeySecret != "" {
				secret = []byte(conf.SeedKeySecret)
			}

			if simConfig.SeedKey, err = seedkey.Lookup(conf.SeedKey, secret); err != nil {
				return err
			}
		}

		simConfig.Log = log
		device := simulator.NewDevice(simConfig)

		if simFlashFile != "" {
			if err := loadFlash(device); err != nil {
				return err
			}
		}

		var s *http.Server
		if simHTTPPort != 0 {
			s = &http.Server{
				Addr:    net.JoinHostPort(simHost, strconv.Itoa(simHTTPPort)),
				Handler: simulator.NewRouter(device, conf.DebugHTTP, log.Named("http")),
			}

			// Initializing the server in a goroutine so that
			// it won't block the graceful shutdown handling below
			go func() {
				if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Http server errored", zap.Error(err))
				}
			}()
		}

		server := simulator.NewServer(device, simulator.ServerOptions{
			Host: simHost,
			Port: simPort,
			Log:  log,
		})

		if err := server.Start(ctx); err != nil {
			return err
		}

		log.Info("Listening",
			zap.String("addr", server.Addr()),
			zap.Int("httpPort", simHTTPPort),
			zap.Bool("protected", simProtected),
			zap.Stringer("byteOrder", simConfig.Order))

		// Wait for the interrupt signal.
		<-ctx.Done()

		log.Info("Shutting down")

		if s != nil {
			// The http server has 5 seconds to finish the request it is
			// currently handling
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			s.SetKeepAlivesEnabled(false)

			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Error("Http server forced to shutdown", zap.Error(err))
			}
		}

		if err := server.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		if simFlashFile != "" {
			return saveFlash(device)
		}

		return nil
	},
}

func loadFlash(device *simulator.Device) error {
	values, err := os.ReadFile(simFlashFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	return device.Flash().Restore(values)
}

func saveFlash(device *simulator.Device) error {
	values, err := device.Flash().Backup()
	if err != nil {
		return err
	}

	return os.WriteFile(simFlashFile, values, 0600)
}
