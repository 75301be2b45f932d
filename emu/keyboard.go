package emu

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"arcore/emu/log"
	"arcore/hw"
)

// Player 1 control bits.
const (
	BtnLeft = iota
	BtnRight
	BtnUp
	BtnDown
	BtnFire
	BtnStart
)

// DefaultHoldFrames is the number of frames a control stays pressed after a
// key press.
const DefaultHoldFrames = 6

// Keyboard turns terminal key presses into player controls:
//
//	arrows, wasd  move
//	space         fire
//	1             start
//	5             coin
//	p             pause
//	r             reset
//	R             power cycle
//	q, ctrl-c     quit
//
// A terminal only reports presses, so a control is held for HoldFrames
// frames after its last key press.
type Keyboard struct {
	HoldFrames int
	DIP        uint8

	fd   int
	old  *term.State
	keys chan byte

	esc  int // escape sequence state
	held [8]int
	coin int
}

// StartKeyboard puts the terminal f in raw mode and starts reading it.
func StartKeyboard(f *os.File) (*Keyboard, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is not a terminal", f.Name())
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to set raw mode: %w", err)
	}

	kb := &Keyboard{
		HoldFrames: DefaultHoldFrames,
		fd:         fd,
		old:        old,
		keys:       make(chan byte, 64),
	}
	// The reader is left blocked on the terminal when the keyboard stops.
	go func() {
		buf := make([]byte, 16)
		for {
			n, err := f.Read(buf)
			if err != nil {
				log.ModInput.WarnZ("keyboard read failed").Error("err", err).End()
				return
			}
			for _, b := range buf[:n] {
				select {
				case kb.keys <- b:
				default:
				}
			}
		}
	}()
	return kb, nil
}

// Stop restores the terminal state.
func (kb *Keyboard) Stop() error {
	if kb.old == nil {
		return nil
	}
	old := kb.old
	kb.old = nil
	return term.Restore(kb.fd, old)
}

// Poll implements Input.
func (kb *Keyboard) Poll(e *Emulator) hw.Inputs {
	for {
		select {
		case b := <-kb.keys:
			kb.press(b, e)
		default:
			return kb.frame()
		}
	}
}

// press handles a byte read from the terminal.
func (kb *Keyboard) press(b byte, e *Emulator) {
	// Arrow keys are sent as ESC [ A-D.
	switch {
	case kb.esc == 0 && b == 0x1b:
		kb.esc = 1
		return
	case kb.esc == 1:
		kb.esc = 0
		if b == '[' {
			kb.esc = 2
			return
		}
	case kb.esc == 2:
		kb.esc = 0
		switch b {
		case 'A':
			kb.hold(BtnUp)
		case 'B':
			kb.hold(BtnDown)
		case 'C':
			kb.hold(BtnRight)
		case 'D':
			kb.hold(BtnLeft)
		}
		return
	}

	switch b {
	case 'a':
		kb.hold(BtnLeft)
	case 'd':
		kb.hold(BtnRight)
	case 'w':
		kb.hold(BtnUp)
	case 's':
		kb.hold(BtnDown)
	case ' ':
		kb.hold(BtnFire)
	case '1':
		kb.hold(BtnStart)
	case '5':
		kb.coin = kb.holdFrames()
	case 'p':
		e.SetPause(!e.Paused())
	case 'r':
		e.Reset()
	case 'R':
		e.Restart()
	case 'q', 0x03:
		e.Stop()
	}
}

func (kb *Keyboard) holdFrames() int { return max(kb.HoldFrames, 1) }

func (kb *Keyboard) hold(btn int) {
	kb.held[btn] = kb.holdFrames()
	// Opposite directions cancel each other.
	switch btn {
	case BtnLeft:
		kb.held[BtnRight] = 0
	case BtnRight:
		kb.held[BtnLeft] = 0
	case BtnUp:
		kb.held[BtnDown] = 0
	case BtnDown:
		kb.held[BtnUp] = 0
	}
}

// frame returns the controls for the next frame.
func (kb *Keyboard) frame() hw.Inputs {
	in := hw.Inputs{DIP: kb.DIP}
	for i := range kb.held {
		if kb.held[i] > 0 {
			in.P1 |= 1 << i
			kb.held[i]--
		}
	}
	if kb.coin > 0 {
		in.Coins |= 1
		kb.coin--
	}
	return in
}
