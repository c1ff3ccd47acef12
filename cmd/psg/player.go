package main

import (
	"github.com/ebitengine/oto/v3"
	"github.com/valerio/go-psg/psg/audio"
)

// player bridges the resampled output to an oto audio device. The
// device pulls on its own goroutine through Read, which drains the
// resamplers under the audio sync channel and so releases a worker
// parked on backpressure.
type player struct {
	apu    *audio.APU
	ctx    *oto.Context
	device *oto.Player

	left  []int16
	right []int16
}

func newPlayer(apu *audio.APU) (*player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   apu.SampleRate(),
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	p := &player{
		apu:   apu,
		ctx:   ctx,
		left:  make([]int16, 2048),
		right: make([]int16, 2048),
	}
	p.device = ctx.NewPlayer(p)
	return p, nil
}

// Read fills b with interleaved little-endian stereo frames. A shortage
// of produced samples pads with silence rather than blocking the device
// goroutine.
func (p *player) Read(b []byte) (int, error) {
	frames := len(b) / 4
	if frames > len(p.left) {
		p.left = make([]int16, frames)
		p.right = make([]int16, frames)
	}

	n := p.apu.ReadSamples(p.left[:frames], p.right[:frames])
	for i := 0; i < n; i++ {
		b[i*4+0] = byte(p.left[i])
		b[i*4+1] = byte(uint16(p.left[i]) >> 8)
		b[i*4+2] = byte(p.right[i])
		b[i*4+3] = byte(uint16(p.right[i]) >> 8)
	}
	for i := n * 4; i < frames*4; i++ {
		b[i] = 0
	}
	return frames * 4, nil
}

func (p *player) Start() {
	p.device.Play()
}

func (p *player) Close() error {
	return p.device.Close()
}
