package usecase

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/stowaway/internal/domain"
)

type countingSettle struct {
	calls int
	paths []string
}

func (s *countingSettle) Settle(ctx context.Context, session domain.Session, producedPath string) error {
	s.calls++
	s.paths = append(s.paths, producedPath)
	return nil
}

// exitSession returns a fixed output for every command.
type exitSession struct {
	fakeSession
	out domain.CommandOutput
}

func (s *exitSession) Run(ctx context.Context, command string) (domain.CommandOutput, error) {
	return s.out, nil
}

func TestCommandRunner(t *testing.T) {
	Convey("Given a command runner", t, func() {
		host := newFakeHost()
		session := &fakeSession{host: host}
		settle := &countingSettle{}
		runner := NewCommandRunner(settle, nopLogger{})
		ctx := context.Background()

		Convey("When the command writes nothing to stderr", func() {
			err := runner.Execute(ctx, session, "true", "noop")

			Convey("It should succeed and settle once", func() {
				So(err, ShouldBeNil)
				So(settle.calls, ShouldEqual, 1)
				So(settle.paths, ShouldResemble, []string{""})
			})
		})

		Convey("When the command writes a warning to stderr", func() {
			host.stderr["chmod"] = []string{"chmod: changing permissions: Operation not permitted"}
			err := runner.Execute(ctx, session, "chmod g+rwx /x", "granting group access")

			Convey("It should fail with a RemoteCommandError and not settle", func() {
				var cmdErr *domain.RemoteCommandError
				So(errors.As(err, &cmdErr), ShouldBeTrue)
				So(cmdErr.Description, ShouldEqual, "granting group access")
				So(cmdErr.Stderr, ShouldHaveLength, 1)
				So(cmdErr.Command, ShouldEqual, "chmod g+rwx /x")
				So(settle.calls, ShouldEqual, 0)
			})
		})

		Convey("When the command exits non-zero with an empty error stream", func() {
			quiet := &exitSession{out: domain.CommandOutput{ExitStatus: 1}}
			err := runner.Execute(ctx, quiet, "sudo usermod -a -G deploy postgres", "adding postgres to group deploy")

			Convey("It should only warn and carry on", func() {
				So(err, ShouldBeNil)
				So(settle.calls, ShouldEqual, 1)
			})
		})

		Convey("When the command exits zero but writes to stderr", func() {
			noisy := &exitSession{out: domain.CommandOutput{Stderr: []string{"WARNING: something"}}}
			err := runner.Execute(ctx, noisy, "true", "noop")

			Convey("It should still fail", func() {
				var cmdErr *domain.RemoteCommandError
				So(errors.As(err, &cmdErr), ShouldBeTrue)
				So(cmdErr.ExitStatus, ShouldEqual, 0)
			})
		})

		Convey("When the command cannot be executed", func() {
			host.runErr["true"] = errors.New("channel closed")
			err := runner.Execute(ctx, session, "true", "noop")

			Convey("It should wrap the cause in a RemoteCommandError", func() {
				var cmdErr *domain.RemoteCommandError
				So(errors.As(err, &cmdErr), ShouldBeTrue)
				So(cmdErr.Err.Error(), ShouldEqual, "channel closed")
			})
		})

		Convey("When producing a file", func() {
			err := runner.ExecuteProducing(ctx, session, "true", "dump", "/r/x.sql")

			Convey("It should pass the path to the settle policy", func() {
				So(err, ShouldBeNil)
				So(settle.paths, ShouldResemble, []string{"/r/x.sql"})
			})
		})
	})
}

func TestSettlePolicies(t *testing.T) {
	Convey("Given settle policies", t, func() {
		host := newFakeHost()
		session := &fakeSession{host: host}
		ctx := context.Background()

		Convey("FixedDelay should wait at least its delay", func() {
			start := time.Now()
			So(FixedDelay{Delay: 20 * time.Millisecond}.Settle(ctx, session, ""), ShouldBeNil)
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 20*time.Millisecond)
		})

		Convey("FixedDelay should stop when the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			So(FixedDelay{Delay: time.Hour}.Settle(cancelled, session, ""), ShouldEqual, context.Canceled)
		})

		Convey("StableSize", func() {
			policy := StableSize{PollInterval: time.Millisecond, Samples: 2, MaxWait: time.Second}

			Convey("It should return once the size stops changing", func() {
				host.sizes = []string{"0", "100", "250", "250", "999"}
				So(policy.Settle(ctx, session, "/r/x.sql"), ShouldBeNil)
				So(host.sizes, ShouldResemble, []string{"999"})
				So(host.seen()[0], ShouldEqual, "stat -c %s /r/x.sql")
			})

			Convey("It should fail when the file cannot be stat'ed", func() {
				err := policy.Settle(ctx, session, "/r/missing.sql")
				var cmdErr *domain.RemoteCommandError
				So(errors.As(err, &cmdErr), ShouldBeTrue)
			})

			Convey("It should time out on a file that keeps growing", func() {
				host.sizes = make([]string, 0, 1000)
				for i := 1; i <= 1000; i++ {
					host.sizes = append(host.sizes, strconv.Itoa(i))
				}
				short := StableSize{PollInterval: time.Millisecond, Samples: 2, MaxWait: 20 * time.Millisecond}
				err := short.Settle(ctx, session, "/r/x.sql")
				So(err, ShouldNotBeNil)
			})

			Convey("It should fall back to the fixed delay without a produced file", func() {
				So(policy.Settle(ctx, session, ""), ShouldBeNil)
				So(host.seen(), ShouldBeEmpty)
			})
		})
	})
}
