package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/xcpflash/client"
	"github.com/luma/xcpflash/internal/utils"
	"github.com/luma/xcpflash/srec"
	"github.com/luma/xcpflash/storage"
)

var (
	verify   bool
	backdoor bool
	quiet    bool
)

func init() {
	flags := ProgramCmd.Flags()

	flags.BoolVar(&verify, "verify", false, "Read back and compare every segment after programming")
	flags.BoolVar(&backdoor, "backdoor", false, "Keep trying to connect until the target enters its bootloader")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
}

var ProgramCmd = &cobra.Command{
	Use:   "program <firmware.srec>",
	Short: "Program a Motorola S-record file into the target",
	Long: `Program a Motorola S-record file into the target

Usage
	xcpflash program -t xcp_net --host 192.168.178.23 firmware.srec

`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		firmware := storage.NewInmemoryStore()
		defer firmware.Close()

		if err := srec.LoadFile(args[0], firmware); err != nil {
			return err
		}

		log.Info("Loaded firmware",
			zap.String("file", args[0]),
			zap.Int("segments", firmware.SegmentCount()),
			zap.String("size", utils.DisplayBi(uint64(firmware.Size()))))

		settings, err := loaderSettings()
		if err != nil {
			return err
		}

		options := client.Options{
			Settings: settings,
			Verify:   verify,
			Backdoor: backdoor,
			Log:      log,
		}

		if !quiet {
			options.Progress = printProgress(cmd.ErrOrStderr())
		}

		return client.New(options).Run(cmd.Context(), firmware)
	},
}

func printProgress(w io.Writer) client.ProgressCallback {
	var last client.Phase

	return func(p client.Progress) {
		if last != "" && p.Phase != last {
			fmt.Fprintln(w)
		}
		last = p.Phase

		fmt.Fprintf(w, "\r%-12s %5.1f%%", p.Phase, p.Percentage())

		if p.Phase == client.PhaseDone {
			fmt.Fprintln(w)
		}
	}
}
