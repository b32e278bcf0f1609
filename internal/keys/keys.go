// Package keys turns terminal key presses into engine commands.
package keys

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"

	"github.com/eiannone/keyboard"
	"golang.org/x/term"

	"github.com/satindergrewal/liteshow/internal/fx"
)

// ErrNoTerminal is returned when stdin is not an interactive terminal.
var ErrNoTerminal = errors.New("stdin is not a terminal")

// Action is what a key asks for.
type Action int

const (
	None Action = iota
	Trigger
	Toggle
	Quit
)

// Command is one decoded key press.
type Command struct {
	Action Action
	Effect fx.Effect // set for Trigger
}

// Map decodes a key press. Digits 1-8 fire effects in pad order, space
// toggles playback, q, Esc and Ctrl-C quit.
func Map(char rune, key keyboard.Key) Command {
	switch {
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		return Command{Action: Quit}
	case key == keyboard.KeySpace || char == ' ':
		return Command{Action: Toggle}
	case char == 'q' || char == 'Q':
		return Command{Action: Quit}
	}
	if e, ok := fx.FromKey(char); ok {
		return Command{Action: Trigger, Effect: e}
	}
	return Command{}
}

// Listen reads keys until ctx ends or a quit key is pressed, sending every
// recognised command on the returned channel. The channel is closed when
// listening stops.
func Listen(ctx context.Context) (<-chan Command, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, ErrNoTerminal
	}
	if err := keyboard.Open(); err != nil {
		return nil, err
	}

	cmds := make(chan Command, 16)
	closeOnce := &sync.Once{}
	closeKeyboard := func() {
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}

	go func() {
		<-ctx.Done()
		closeKeyboard()
	}()

	go func() {
		defer close(cmds)
		defer closeKeyboard()
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			cmd := Map(char, key)
			if cmd.Action == None {
				continue
			}
			select {
			case cmds <- cmd:
			default:
				log.Println("Keys: command dropped, consumer busy")
			}
			if cmd.Action == Quit {
				return
			}
		}
	}()

	log.Println("Keys: 1-8 fire effects, space toggles playback, q quits")
	return cmds, nil
}
