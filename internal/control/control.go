// Package control maps single key presses on the terminal to run commands.
package control

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"liquiditySniper/internal/loop"
)

const (
	keyHardStop   = 0x03 // Ctrl+C
	keyManualSell = 0x0e // Ctrl+N
)

// Commands are the actions reachable from the keyboard. They run on the
// loop.
type Commands interface {
	HardStop()
	ManualSell()
}

// RawTerminal puts f into raw mode when it is a terminal. The returned
// function restores the previous mode.
func RawTerminal(f *os.File) (restore func(), err error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, state) }, nil
}

// Listen reads key presses from r until ctx ends or r is exhausted.
func Listen(ctx context.Context, r io.Reader, l *loop.Loop, cmds Commands, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys := make(chan byte)
	errc := make(chan error, 1)
	go func() {
		br := bufio.NewReader(r)
		for {
			b, err := br.ReadByte()
			if err != nil {
				errc <- err
				return
			}
			select {
			case keys <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case b := <-keys:
			switch b {
			case keyHardStop:
				logger.Info("hard stop key pressed")
				l.Post(cmds.HardStop)
			case keyManualSell:
				logger.Info("manual sell key pressed")
				l.Post(cmds.ManualSell)
			}
		}
	}
}
