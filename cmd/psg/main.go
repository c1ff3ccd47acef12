package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/urfave/cli"
	"github.com/valerio/go-psg/psg"
	"github.com/valerio/go-psg/psg/audio"
	"github.com/valerio/go-psg/psg/exec"
	"github.com/valerio/go-psg/psg/timing"
)

func main() {
	app := cli.NewApp()
	app.Name = "psg"
	app.Description = "A cycle-accurate Game Boy-style sound generator playing a built-in tune"
	app.Usage = "psg [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "sample-rate",
			Usage: "Host audio output rate in Hz",
			Value: 48000,
		},
		cli.IntFlag{
			Name:  "buffer",
			Usage: "Audio buffer quota in sample frames",
			Value: 1536,
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without the terminal interface",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode",
			Value: 600,
		},
		cli.BoolFlag{
			Name:  "silent",
			Usage: "Run without an audio device",
		},
		cli.BoolFlag{
			Name:  "fast-forward",
			Usage: "Disable audio sync so emulation runs unthrottled",
		},
		cli.BoolFlag{
			Name:  "gba",
			Usage: "Model the later hardware revision's wavetable behavior",
		},
		cli.StringFlag{
			Name:  "mute",
			Usage: "Channels to mute at startup, e.g. --mute 34",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running psg", "error", err)
		os.Exit(1)
	}
}

// streamStats counts sample pipeline callbacks for the status display.
type streamStats struct {
	sampleFrames atomic.Uint64
	bufferPosts  atomic.Uint64
}

func (s *streamStats) PostSampleFrame(left, right int16) {
	s.sampleFrames.Add(1)
}

func (s *streamStats) PostAudioBuffer(left, right *audio.Resampler) {
	s.bufferPosts.Add(1)
}

func (s *streamStats) SampleFrames() uint64 {
	return s.sampleFrames.Load()
}

// idleCore is the CPU collaborator of the demo: it has no program to
// run and simply spends every cycle it is offered.
type idleCore struct{}

func (idleCore) Advance(limit int32) int32 { return limit }
func (idleCore) Reset()                    {}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	logSink := io.Writer(os.Stderr)
	if !c.Bool("headless") {
		// The terminal UI owns the screen; logs would corrupt it.
		logSink = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(logSink, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	stats := &streamStats{}
	apuOpts := []audio.Option{
		audio.WithSampleRate(c.Int("sample-rate")),
		audio.WithSamples(c.Int("buffer")),
		audio.WithStream(stats),
	}
	if c.Bool("gba") {
		apuOpts = append(apuOpts, audio.WithStyle(audio.StyleGBA))
	}

	var seq *sequencer
	machine := psg.New(&idleCore{},
		psg.WithLogger(logger),
		psg.WithAPUOptions(apuOpts...),
		psg.WithTimerIRQ(func() { seq.onTimerIRQ() }),
	)
	seq = newSequencer(machine)

	for _, r := range c.String("mute") {
		if r < '1' || r > '4' {
			return errors.New("--mute takes channel numbers 1-4")
		}
		machine.APU().ForceDisableChannel(int(r-'1'), true)
	}

	silent := c.Bool("silent")
	audioSync := !silent && !c.Bool("fast-forward")
	ctrl := exec.New(machine,
		exec.WithLogger(logger),
		exec.WithAudioSync(audioSync),
		exec.WithStartCallback(func(*exec.Controller) { seq.restart() }),
	)

	if !silent {
		p, err := newPlayer(machine.APU())
		if err != nil {
			return err
		}
		defer p.Close()
		p.Start()
	}

	ctrl.Start()
	defer func() {
		ctrl.End()
		ctrl.Join()
	}()

	if c.Bool("headless") {
		return runHeadless(ctrl, machine, c.Int("frames"))
	}

	ui, err := newStatusUI(ctrl, machine, stats, seq.restart)
	if err != nil {
		return err
	}
	return ui.Run()
}

func runHeadless(ctrl *exec.Controller, machine *psg.Machine, frames int) error {
	slog.Info("Running headless", "frames", frames)

	limiter := timing.NewTickerLimiter(30)
	defer limiter.Stop()

	for {
		if ctrl.HasCrashed() {
			return errors.New("worker crashed")
		}
		var done uint64
		ctrl.RunOn(func(*exec.Controller) { done = machine.Frames() })
		if done >= uint64(frames) {
			slog.Info("Headless execution completed", "frames", done)
			return nil
		}
		limiter.WaitForNextFrame()
	}
}
