// Package cli wires the mscdiskd command-line surface: flag/config binding
// via cobra, pflag and viper, and the serve/inspect/version command tree.
package cli

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"usbmsc/device/class/msc"
)

const defaultBlockSize = msc.DefaultBlockSize

// version is set at build time via -ldflags "-X .../cli.version=...".
var version = "dev"

var log = logrus.New()

type options struct {
	busDir          string
	imagePath       string
	diskSize        uint64
	blockSize       uint32
	readOnly        bool
	removable       bool
	vendorID        uint16
	productID       uint16
	vendorString    string
	productString   string
	serial          string
	verbose         bool
	jsonLog         bool
	enumTimeout     time.Duration
	transferTimeout time.Duration
	cpuProfile      string
	configFile      string
}

// Execute builds and runs the root mscdiskd command.
func Execute() error {
	root := &cobra.Command{
		Use:          "mscdiskd",
		Short:        "Serve a USB Mass Storage Class disk over a FIFO-based device bus",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newInspectCmd(), newVersionCmd())

	return root.Execute()
}

// bindFlags registers the flag set shared by serve and inspect.
func bindFlags(opts *options, flags *pflag.FlagSet) {
	flags.StringVar(&opts.busDir, "bus-dir", "/tmp/usb-bus", "FIFO bus directory shared with the host process")
	flags.StringVar(&opts.imagePath, "image", "", "path to a disk image file (default: in-memory disk)")
	flags.Uint64Var(&opts.diskSize, "size", 1024*1024, "in-memory disk size in bytes (ignored with --image)")
	flags.Uint32Var(&opts.blockSize, "block-size", defaultBlockSize, "logical block size in bytes")
	flags.BoolVar(&opts.readOnly, "read-only", false, "expose the disk as write protected")
	flags.BoolVar(&opts.removable, "removable", true, "advertise the medium as removable (enables eject)")
	flags.Uint16Var(&opts.vendorID, "vendor-id", 0x0483, "USB vendor ID")
	flags.Uint16Var(&opts.productID, "product-id", 0x5742, "USB product ID")
	flags.StringVar(&opts.vendorString, "vendor", "usbmsc", "USB manufacturer string")
	flags.StringVar(&opts.productString, "product", "Mass Storage Device", "USB product string")
	flags.StringVar(&opts.serial, "serial", "000000000001", "SCSI unit serial number / USB serial string")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug-level logging")
	flags.BoolVar(&opts.jsonLog, "json", false, "emit logs as JSON")
	flags.DurationVar(&opts.enumTimeout, "enum-timeout", 10*time.Second, "timeout waiting for host enumeration")
	flags.DurationVar(&opts.transferTimeout, "transfer-timeout", 5*time.Second, "bulk transfer timeout (accepted but not applied; bulk transfers have no deadline)")
	flags.StringVar(&opts.cpuProfile, "cpu-profile", "", "write a CPU profile to this path for the process lifetime")
	flags.StringVar(&opts.configFile, "config", "", "optional config file (yaml/json/toml) overriding defaults")
}

func newServeCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "serve [bus-dir]",
		Short: "Assemble a disk backend and serve it as a USB MSC device",
		Long: `serve presents an in-memory or file-backed disk image as a USB
Mass Storage Class device, speaking Bulk-Only Transport and a SCSI
transparent command subset, over a FIFO HAL bus directory shared with
a host process.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := bindViper(cmd)
			opts.applyViper(v)
			if len(args) == 1 {
				opts.busDir = args[0]
			}
			return runServe(cmd, opts)
		},
	}

	bindFlags(opts, cmd.Flags())
	return cmd
}

func newInspectCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Report the geometry of a disk backend without serving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := bindViper(cmd)
			opts.applyViper(v)
			return runInspect(cmd, opts)
		},
	}

	bindFlags(opts, cmd.Flags())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mscdiskd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// bindViper binds every pflag to a viper key of the same name and layers in
// an optional config file and MSCDISKD_-prefixed environment variables. Flag
// values set explicitly on the command line still win over the config file,
// since BindPFlags only supplies a fallback for unset flags.
func bindViper(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MSCDISKD")
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.WithError(err).Warn("failed to read config file, continuing with flags/env only")
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		log.WithError(err).Warn("failed to bind flags to config")
	}

	return v
}

func (o *options) applyViper(v *viper.Viper) {
	o.busDir = v.GetString("bus-dir")
	o.imagePath = v.GetString("image")
	o.diskSize = v.GetUint64("size")
	o.blockSize = uint32(v.GetUint32("block-size"))
	o.readOnly = v.GetBool("read-only")
	o.removable = v.GetBool("removable")
	o.vendorID = uint16(v.GetUint32("vendor-id"))
	o.productID = uint16(v.GetUint32("product-id"))
	o.vendorString = v.GetString("vendor")
	o.productString = v.GetString("product")
	o.serial = v.GetString("serial")
	o.verbose = v.GetBool("verbose")
	o.jsonLog = v.GetBool("json")
	o.enumTimeout = v.GetDuration("enum-timeout")
	o.transferTimeout = v.GetDuration("transfer-timeout")
	o.cpuProfile = v.GetString("cpu-profile")
}
