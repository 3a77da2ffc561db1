package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/luma/xcpflash/cmd/gen"
	"github.com/luma/xcpflash/internal/env"
	"github.com/luma/xcpflash/loader"
	"github.com/luma/xcpflash/seedkey"
	"github.com/luma/xcpflash/transport"
)

var (
	conf *env.Config
	log  *zap.Logger
)

var RootCmd = &cobra.Command{
	Use:   "xcpflash",
	Short: "Update firmware through an XCP bootloader",
	Long: `Update firmware through an XCP bootloader

The target is reached over RS232, TCP/IP or CAN. Settings are read from
XCPFLASH_* environment variables and .env.local, flags override them.
`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		conf, err = env.LoadConfig(cmd.Context())
		if err != nil {
			return err
		}

		applyFlags(cmd.Flags())

		log, err = env.MakeLogger(conf.LogLevel, conf.LogFormat)
		return err
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringP("transport", "t", "xcp_rs232", "Transport to the target: xcp_rs232, xcp_net or xcp_can")
	flags.StringP("device", "d", "/dev/ttyUSB0", "Serial device")
	flags.IntP("baudrate", "b", transport.DefaultBaudrate, "Serial baudrate")
	flags.String("host", "127.0.0.1", "Host of an XCP on TCP/IP target")
	flags.Int("port", transport.DefaultNetPort, "Port of an XCP on TCP/IP target")
	flags.String("can-interface", "can0", "SocketCAN interface")
	flags.Uint32("can-tx-id", transport.DefaultTransmitID, "CAN identifier of commands")
	flags.Uint32("can-rx-id", transport.DefaultReceiveID, "CAN identifier of responses")
	flags.Bool("can-extended", false, "Use 29 bit CAN identifiers")
	flags.String("seedkey", seedkey.DecrementName, "Seed/key algorithm used to unlock programming")
	flags.String("seedkey-secret", "", "Secret of the seed/key algorithm, if it needs one")
	flags.Int("connect-mode", 0, "Mode byte sent with CONNECT")
	flags.Bool("trace", false, "Log every packet")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")

	RootCmd.AddCommand(ProgramCmd, ReadCmd, InfoCmd, SimulateCmd, VersionCmd, gen.RootCmd)
}

// applyFlags copies the flags the user set over the environment config.
func applyFlags(flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "transport":
			conf.Transport, _ = flags.GetString(f.Name)
		case "device":
			conf.Device, _ = flags.GetString(f.Name)
		case "baudrate":
			conf.Baudrate, _ = flags.GetInt(f.Name)
		case "host":
			conf.Host, _ = flags.GetString(f.Name)
		case "port":
			conf.Port, _ = flags.GetInt(f.Name)
		case "can-interface":
			conf.CANInterface, _ = flags.GetString(f.Name)
		case "can-tx-id":
			conf.CANTransmitID, _ = flags.GetUint32(f.Name)
		case "can-rx-id":
			conf.CANReceiveID, _ = flags.GetUint32(f.Name)
		case "can-extended":
			conf.CANExtended, _ = flags.GetBool(f.Name)
		case "seedkey":
			conf.SeedKey, _ = flags.GetString(f.Name)
		case "seedkey-secret":
			conf.SeedKeySecret, _ = flags.GetString(f.Name)
		case "connect-mode":
			conf.ConnectMode, _ = flags.GetInt(f.Name)
		case "trace":
			conf.Trace, _ = flags.GetBool(f.Name)
		case "log-level":
			conf.LogLevel, _ = flags.GetString(f.Name)
		}
	})
}

// loaderSettings builds the transport and loader settings from the config.
func loaderSettings() (loader.Settings, error) {
	t, err := transport.New(transport.Kind(conf.Transport), transport.Options{
		Device:     conf.Device,
		Baudrate:   conf.Baudrate,
		Host:       conf.Host,
		Port:       conf.Port,
		Interface:  conf.CANInterface,
		TransmitID: conf.CANTransmitID,
		ReceiveID:  conf.CANReceiveID,
		Extended:   conf.CANExtended,
		Trace:      conf.Trace,
		Log:        log.Named("transport"),
	})
	if err != nil {
		return loader.Settings{}, err
	}

	var secret []byte
	if conf.SeedKeySecret != "" {
		secret = []byte(conf.SeedKeySecret)
	}

	algorithm, err := seedkey.Lookup(conf.SeedKey, secret)
	if err != nil {
		return loader.Settings{}, fmt.Errorf("%w, known algorithms: %v", err, seedkey.Names())
	}

	if conf.ConnectMode < 0 || conf.ConnectMode > 0xFF {
		return loader.Settings{}, fmt.Errorf("connect mode %d does not fit in a byte", conf.ConnectMode)
	}

	return loader.Settings{
		T1:          ms(conf.T1),
		T2:          ms(conf.T2),
		T3:          ms(conf.T3),
		T4:          ms(conf.T4),
		T5:          ms(conf.T5),
		T6:          ms(conf.T6),
		T7:          ms(conf.T7),
		ConnectMode: byte(conf.ConnectMode),
		SeedKey:     algorithm,
		Transport:   t,
		Log:         log,
	}, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Execute runs the root command, cancelling its context on interrupt.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
