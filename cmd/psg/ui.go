package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-psg/psg"
	"github.com/valerio/go-psg/psg/exec"
	"github.com/valerio/go-psg/psg/timing"
)

const uiRedrawFPS = 15

// statusUI is the interactive terminal front end: a live view of the
// channel states plus key bindings into the execution controller.
type statusUI struct {
	screen  tcell.Screen
	ctrl    *exec.Controller
	machine *psg.Machine
	stats   *streamStats
	restart func()

	fastForward bool
}

func newStatusUI(ctrl *exec.Controller, machine *psg.Machine, stats *streamStats, restart func()) (*statusUI, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	return &statusUI{
		screen:  screen,
		ctrl:    ctrl,
		machine: machine,
		stats:   stats,
		restart: restart,
	}, nil
}

// machineState is the snapshot rendered by the UI, captured on the
// worker goroutine so register reads never race the run loop.
type machineState struct {
	frames  uint64
	status  uint8
	playing [4]bool
	muted   [4]bool
}

func (u *statusUI) snapshot() machineState {
	var st machineState
	if u.ctrl.HasExited() || u.ctrl.HasCrashed() {
		return st
	}
	u.ctrl.RunOn(func(*exec.Controller) {
		st.frames = u.machine.Frames()
		st.status = u.machine.APU().Status()
		for i := 0; i < 4; i++ {
			st.playing[i] = u.machine.APU().ChannelPlaying(i)
			st.muted[i] = u.machine.APU().ChannelDisabled(i)
		}
	})
	return st
}

// Run drives the UI until the user quits.
func (u *statusUI) Run() error {
	defer u.screen.Fini()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	limiter := timing.NewTickerLimiter(uiRedrawFPS)
	defer limiter.Stop()

	for {
		select {
		case ev := <-events:
			if quit := u.handleEvent(ev); quit {
				return nil
			}
		default:
		}

		u.draw(u.snapshot())
		limiter.WaitForNextFrame()
	}
}

func (u *statusUI) handleEvent(ev tcell.Event) bool {
	key, ok := ev.(*tcell.EventKey)
	if !ok {
		return false
	}
	switch {
	case key.Key() == tcell.KeyEscape, key.Key() == tcell.KeyCtrlC:
		return true
	case key.Key() != tcell.KeyRune:
		return false
	}

	switch key.Rune() {
	case 'q':
		return true
	case ' ':
		u.ctrl.TogglePause()
	case 'r':
		u.ctrl.RunOn(func(*exec.Controller) {
			u.machine.Reset()
			u.restart()
		})
	case 'f':
		u.fastForward = !u.fastForward
		u.ctrl.Sync().SetAudioSync(!u.fastForward)
	case '1', '2', '3', '4':
		ch := int(key.Rune() - '1')
		u.ctrl.RunOn(func(*exec.Controller) {
			apu := u.machine.APU()
			apu.ForceDisableChannel(ch, !apu.ChannelDisabled(ch))
		})
	}
	return false
}

var channelNames = [4]string{"square 1", "square 2", "wave", "noise"}

func (u *statusUI) draw(st machineState) {
	u.screen.Clear()

	u.drawText(0, 0, "go-psg  [space] pause  [f] fast-forward  [1-4] mute  [r] reset  [q] quit")

	state := "running"
	switch {
	case u.ctrl.HasCrashed():
		state = "crashed"
	case u.ctrl.IsPaused():
		state = "paused"
	case u.fastForward:
		state = "fast-forward"
	}
	u.drawText(0, 2, fmt.Sprintf("state: %-12s frames: %-8d samples: %d",
		state, st.frames, u.stats.SampleFrames()))
	u.drawText(0, 3, fmt.Sprintf("NR52: %02X", st.status))

	for i, name := range channelNames {
		marker := "  "
		if st.playing[i] {
			marker = "▶ "
		}
		muted := ""
		if st.muted[i] {
			muted = " (muted)"
		}
		u.drawText(0, 5+i, fmt.Sprintf("%s%d %-9s%s", marker, i+1, name, muted))
	}

	u.screen.Show()
}

func (u *statusUI) drawText(x, y int, text string) {
	for i, r := range []rune(text) {
		u.screen.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}
