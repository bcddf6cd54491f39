//go:build !linux

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoOutput struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	// read from the device callback
	current atomic.Pointer[[]byte]
	pos     atomic.Uint32
}

func newOutput() output {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil
	}
	o := &malgoOutput{ctx: ctx}
	if err := o.initDevice(); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil
	}
	return o
}

func (o *malgoOutput) initDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	device, err := malgo.InitDevice(o.ctx.Context, cfg, malgo.DeviceCallbacks{Data: o.onData})
	if err != nil {
		return err
	}
	o.device = device
	return nil
}

func (o *malgoOutput) onData(out, _ []byte, frameCount uint32) {
	want := frameCount * 2
	samples := o.current.Load()
	if samples == nil {
		clear(out[:want])
		return
	}
	pos := o.pos.Load()
	remaining := uint32(len(*samples)) - pos
	n := min(want, remaining)
	copy(out[:n], (*samples)[pos:pos+n])
	clear(out[n:want])
	if n == remaining {
		o.current.Store(nil)
	}
	o.pos.Store(pos + n)
}

func (o *malgoOutput) play(samples []int16) {
	if len(samples) == 0 {
		return
	}
	buf := int16Bytes(samples)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.device == nil {
		return
	}
	o.device.Stop()
	o.pos.Store(0)
	o.current.Store(&buf)

	if err := o.device.Start(); err != nil {
		// devices go stale across sleep/wake; recreate once
		o.device.Uninit()
		o.device = nil
		if err := o.initDevice(); err != nil {
			o.current.Store(nil)
			return
		}
		if err := o.device.Start(); err != nil {
			o.current.Store(nil)
		}
	}
}

func (o *malgoOutput) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.device != nil {
		o.device.Uninit()
		o.device = nil
	}
	if o.ctx != nil {
		o.ctx.Uninit()
		o.ctx.Free()
		o.ctx = nil
	}
}
