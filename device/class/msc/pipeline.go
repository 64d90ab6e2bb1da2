package msc

import (
	"context"
	"sync"
)

// readPipeline streams total blocks starting at lba to the host, overlapping
// the block-device read for block i+1 with the USB transmit of block i. It
// uses the two fixed-size buffers in m.rwBuf, alternating on i&1, the same
// alternation the original firmware's rw_buf[2][512] double buffer used —
// the difference here is that the overlap is expressed as a goroutine joined
// before the buffer is reused, rather than an ISR-signaled async transfer.
func (m *MSC) readPipeline(ctx context.Context, lba uint64, total uint32) (uint32, error) {
	if total == 0 {
		return 0, nil
	}

	bs := m.storage.BlockSize()
	buf := [2][]byte{m.rwBuf[0][:bs], m.rwBuf[1][:bs]}

	if _, err := m.storage.Read(lba, 1, buf[0]); err != nil {
		return 0, err
	}
	lba++

	var sent uint32
	for i := uint32(0); i < total; i++ {
		cur := buf[i%2]

		var wg sync.WaitGroup
		var nextErr error
		more := i < total-1
		if more {
			wg.Add(1)
			next := buf[(i+1)%2]
			addr := lba
			go func() {
				defer wg.Done()
				_, nextErr = m.storage.Read(addr, 1, next)
			}()
			lba++
		}

		if err := m.sendData(ctx, cur); err != nil {
			if more {
				wg.Wait()
			}
			return sent * bs, err
		}
		sent++

		if more {
			wg.Wait()
			if nextErr != nil {
				return sent * bs, nextErr
			}
		}
	}

	return sent * bs, nil
}

// writePipeline receives total blocks from the host and writes them to the
// block device, overlapping the USB receive of block i+1 with the block
// write of block i. Mirrors readPipeline's alternation in the opposite
// direction.
func (m *MSC) writePipeline(ctx context.Context, lba uint64, total uint32) (uint32, error) {
	if total == 0 {
		return 0, nil
	}

	bs := m.storage.BlockSize()
	buf := [2][]byte{m.rwBuf[0][:bs], m.rwBuf[1][:bs]}

	if err := m.receiveData(ctx, buf[0]); err != nil {
		return 0, err
	}

	var written uint32
	for i := uint32(0); i < total; i++ {
		cur := buf[i%2]

		var wg sync.WaitGroup
		var recvErr error
		more := i < total-1
		if more {
			wg.Add(1)
			next := buf[(i+1)%2]
			go func() {
				defer wg.Done()
				recvErr = m.receiveData(ctx, next)
			}()
		}

		if _, err := m.storage.Write(lba, 1, cur); err != nil {
			if more {
				wg.Wait()
			}
			return written * bs, err
		}
		written++
		lba++

		if more {
			wg.Wait()
			if recvErr != nil {
				return written * bs, recvErr
			}
		}
	}

	return written * bs, nil
}
