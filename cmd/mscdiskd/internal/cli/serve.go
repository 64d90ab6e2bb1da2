package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"usbmsc/device"
	"usbmsc/device/class/msc"
	"usbmsc/device/hal/fifo"
	"usbmsc/pkg"
	"usbmsc/pkg/prof"
)

// runServe assembles the storage backend, device descriptor, class driver
// and FIFO HAL, then drives the stack until the medium is ejected or a
// termination signal arrives. A host disconnect alone does not end it.
func runServe(cmd *cobra.Command, opts *options) error {
	configureLogging(opts)

	if opts.cpuProfile != "" {
		if err := prof.StartCPU(opts.cpuProfile); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer prof.StopCPU()
	}

	storage, err := buildStorage(opts)
	if err != nil {
		return fmt.Errorf("build storage: %w", err)
	}
	if closer, ok := storage.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	log.WithFields(logrus.Fields{
		"blockSize":  storage.BlockSize(),
		"blockCount": storage.BlockCount(),
		"busDir":     opts.busDir,
	}).Info("starting mscdiskd")

	disk := msc.New(storage, msc.Config{
		VendorID:  opts.vendorString,
		ProductID: opts.productString,
		Serial:    opts.serial,
		OnActivity: func(active bool) {
			log.WithField("active", active).Debug("disk activity")
		},
	})

	hal := fifo.New(opts.busDir)

	builder := device.NewDeviceBuilder().
		WithVendorProduct(opts.vendorID, opts.productID).
		WithStrings(opts.vendorString, opts.productString, opts.serial).
		AddConfiguration(1)
	disk.ConfigureDevice(builder, 0x81, 0x01)

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		cancel()
	}()

	dev, err := builder.Build(runCtx)
	if err != nil {
		return fmt.Errorf("build device: %w", err)
	}

	if err := disk.AttachToInterface(dev, 1, 0); err != nil {
		return fmt.Errorf("attach class driver: %w", err)
	}

	stack := device.NewStack(dev, hal)
	disk.SetStack(stack)

	if err := stack.Start(runCtx); err != nil {
		return fmt.Errorf("start stack: %w", err)
	}
	defer stack.Stop()

	// transferTimeout is accepted for forward compatibility with a future
	// per-transfer deadline; the stack does not yet expose one to enforce.
	_ = opts.transferTimeout

	log.WithField("timeout", opts.enumTimeout).Info("waiting for host connection")
	enumCtx, enumCancel := context.WithTimeout(runCtx, opts.enumTimeout)
	defer enumCancel()
	if err := stack.WaitConnect(enumCtx); err != nil {
		return fmt.Errorf("wait for connection: %w", err)
	}

	log.Info("host connected, serving SCSI commands")

	go func() {
		<-disk.Ejected()
		log.Info("medium ejected")
		cancel()
	}()

	if err := disk.Run(runCtx); err != nil && runCtx.Err() == nil {
		return fmt.Errorf("run MSC driver: %w", err)
	}

	log.Info("mscdiskd stopped")
	return nil
}

// configureLogging applies --verbose/--json to both the CLI's own logrus
// logger and the driver's internal pkg/slog logger, routing the latter
// through logrus via a bridge handler so both streams share one sink and
// one set of levels/formatting.
func configureLogging(opts *options) {
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if opts.jsonLog {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	pkg.SetLogger(newBridgeLogger(log))
}
