package cli

import "usbmsc/device/class/msc"

// buildStorage constructs the backing store selected by opts: a file-backed
// image when --image is given, an in-memory disk otherwise.
func buildStorage(opts *options) (msc.Storage, error) {
	if opts.imagePath != "" {
		fs, err := msc.NewFileStorage(opts.imagePath, opts.blockSize, opts.readOnly)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}

	ms := msc.NewMemoryStorage(opts.diskSize, opts.blockSize)
	ms.SetReadOnly(opts.readOnly)
	ms.SetRemovable(opts.removable)
	return ms, nil
}
