package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/luma/xcpflash/client"
	"github.com/luma/xcpflash/srec"
	"github.com/luma/xcpflash/storage"
)

var output string

func init() {
	ReadCmd.Flags().StringVarP(&output, "output", "o", "", "Write the memory to this S-record file instead of printing a hex dump")
}

var ReadCmd = &cobra.Command{
	Use:   "read <address> <length>",
	Short: "Read target memory",
	Long: `Read target memory

Address and length accept decimal, 0x hexadecimal and 0 octal notation.

Usage
	xcpflash read 0x08000000 0x400 -o dump.srec

`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", args[0], err)
		}

		length, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid length %q: %w", args[1], err)
		}

		settings, err := loaderSettings()
		if err != nil {
			return err
		}

		data, err := client.New(client.Options{Settings: settings, Log: log}).
			Read(cmd.Context(), uint32(address), int(length))
		if err != nil {
			return err
		}

		if output == "" {
			_, err = fmt.Fprint(cmd.OutOrStdout(), hex.Dump(data))
			return err
		}

		store := storage.NewInmemoryStore()
		defer store.Close()

		if err := store.AddData(uint32(address), data); err != nil {
			return err
		}

		f, err := os.Create(output)
		if err != nil {
			return err
		}

		if err := srec.Write(f, store, "xcpflash"); err != nil {
			f.Close()
			return err
		}

		return f.Close()
	},
}
