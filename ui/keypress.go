package ui

import (
	"sync"

	"github.com/eiannone/keyboard"
)

// KeyEsc is emitted for the escape key and for Ctrl+C.
const KeyEsc rune = 27

var (
	keyCh     chan rune
	keyErr    error
	startOnce sync.Once
	stopOnce  sync.Once
)

// StartKeyEvents returns a channel that emits single-key runes read without
// Enter. The channel is closed when the keyboard is released or fails. The
// error is non-nil when no terminal keyboard is available.
func StartKeyEvents() (<-chan rune, error) {
	startOnce.Do(func() {
		keyCh = make(chan rune, 64)
		if err := keyboard.Open(); err != nil {
			keyErr = err
			close(keyCh)
			return
		}
		go func() {
			defer close(keyCh)
			for {
				char, key, err := keyboard.GetKey()
				if err != nil {
					return
				}
				r := char
				switch key {
				case 0:
				case keyboard.KeyEsc, keyboard.KeyCtrlC:
					r = KeyEsc
				case keyboard.KeyEnter:
					r = '\n'
				default:
					continue
				}
				select {
				case keyCh <- r:
				default:
				}
			}
		}()
	})
	return keyCh, keyErr
}

// StopKeyEvents restores the terminal.
func StopKeyEvents() {
	stopOnce.Do(func() {
		if keyErr == nil && keyCh != nil {
			_ = keyboard.Close()
		}
	})
}

// DrainKeys consumes any immediately available keys to avoid accidental triggers.
func DrainKeys(ch <-chan rune) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
