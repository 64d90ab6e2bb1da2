package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// runInspect reports a disk backend's geometry without serving it over the
// bus, for sanity-checking --image/--size/--block-size before a serve run.
func runInspect(cmd *cobra.Command, opts *options) error {
	storage, err := buildStorage(opts)
	if err != nil {
		return fmt.Errorf("build storage: %w", err)
	}
	if closer, ok := storage.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	info := storage.Info()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "block size:   %d bytes\n", info.BlockSize)
	fmt.Fprintf(out, "block count:  %d\n", info.BlockCount)
	fmt.Fprintf(out, "capacity:     %d bytes\n", uint64(info.BlockSize)*info.BlockCount)
	fmt.Fprintf(out, "write protect: %t\n", storage.IsWriteProtected())
	fmt.Fprintf(out, "removable:    %t\n", storage.IsRemovable())
	fmt.Fprintf(out, "vendor:       %q\n", opts.vendorString)
	fmt.Fprintf(out, "product:      %q\n", opts.productString)
	fmt.Fprintf(out, "serial:       %q\n", opts.serial)

	return nil
}
