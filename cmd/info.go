package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/luma/xcpflash/internal/utils"
	"github.com/luma/xcpflash/srec"
	"github.com/luma/xcpflash/storage"
)

var asJSON bool

func init() {
	InfoCmd.Flags().BoolVar(&asJSON, "json", false, "Print the firmware as JSON, data included")
}

var InfoCmd = &cobra.Command{
	Use:   "info <firmware.srec>",
	Short: "Describe the segments of an S-record file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		firmware := storage.NewInmemoryStore()
		defer firmware.Close()

		if err := srec.LoadFile(args[0], firmware); err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if asJSON {
			backup, err := firmware.Backup()
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(out, gjson.GetBytes(backup, "@pretty").Raw)
			return err
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEGMENT\tBASE\tEND\tSIZE")

		for i := 0; i < firmware.SegmentCount(); i++ {
			seg := firmware.Segment(i)
			fmt.Fprintf(w, "%d\t0x%08X\t0x%08X\t%s\n", i, seg.Base, seg.End(), utils.DisplayBi(uint64(seg.Len())))
		}

		fmt.Fprintf(w, "total\t\t\t%s\n", utils.DisplayBi(uint64(firmware.Size())))

		return w.Flush()
	},
}
