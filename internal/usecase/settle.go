package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/semmidev/stowaway/internal/domain"
)

// SettlePolicy waits after a successful remote command so dependent steps do
// not read a file that is still being flushed.
type SettlePolicy interface {
	Settle(ctx context.Context, session domain.Session, producedPath string) error
}

// FixedDelay waits the same amount of time after every command.
type FixedDelay struct {
	Delay time.Duration
}

func (f FixedDelay) Settle(ctx context.Context, _ domain.Session, _ string) error {
	return sleep(ctx, f.Delay)
}

// StableSize polls the size of the produced file until it stops changing.
// Commands that produce no file fall back to Fallback.
type StableSize struct {
	PollInterval time.Duration
	Samples      int
	MaxWait      time.Duration
	Fallback     FixedDelay
}

func (s StableSize) Settle(ctx context.Context, session domain.Session, producedPath string) error {
	if producedPath == "" {
		return s.Fallback.Settle(ctx, session, producedPath)
	}

	ctx, cancel := context.WithTimeout(ctx, s.MaxWait)
	defer cancel()

	command := shellquote.Join("stat", "-c", "%s", producedPath)
	last, streak := int64(-1), 0

	for {
		size, err := remoteSize(ctx, session, command)
		if err != nil {
			return err
		}

		switch {
		case size <= 0:
			streak = 0
		case size == last:
			streak++
		default:
			streak = 1
		}
		last = size

		if streak >= s.Samples {
			return nil
		}

		if err := sleep(ctx, s.PollInterval); err != nil {
			return fmt.Errorf("%s did not settle within %s (last size %d): %w", producedPath, s.MaxWait, last, err)
		}
	}
}

func remoteSize(ctx context.Context, session domain.Session, command string) (int64, error) {
	out, err := session.Run(ctx, command)
	if err != nil {
		return 0, &domain.RemoteCommandError{Description: "checking file size", Command: command, Err: err}
	}
	if len(out.Stderr) > 0 {
		return 0, &domain.RemoteCommandError{
			Description: "checking file size",
			Command:     command,
			Stderr:      out.Stderr,
			ExitStatus:  out.ExitStatus,
		}
	}
	if len(out.Stdout) == 0 {
		return 0, &domain.RemoteCommandError{Description: "checking file size", Command: command, Err: fmt.Errorf("empty output")}
	}

	size, err := strconv.ParseInt(strings.TrimSpace(out.Stdout[0]), 10, 64)
	if err != nil {
		return 0, &domain.RemoteCommandError{Description: "checking file size", Command: command, Err: err}
	}
	return size, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
