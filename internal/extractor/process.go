package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const (
	maxLineBytes   = 1024 * 1024
	tailLines      = 8
	killPollPeriod = 25 * time.Millisecond
)

// ErrAborted is returned by Stream when the line callback asked to stop.
var ErrAborted = errors.New("subprocess aborted")

// StreamHooks observe a streaming subprocess. OnStart receives the process
// group id. OnLine sees every line of merged stdout/stderr; returning false
// terminates the group.
type StreamHooks struct {
	OnStart func(pgid int)
	OnLine  func(line string) bool
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
	Stream(ctx context.Context, binary string, args []string, hooks StreamHooks) error
}

// ExitError carries the exit failure of a streamed command together with the
// last lines it printed.
type ExitError struct {
	Err  error
	Tail []string
}

func (e *ExitError) Error() string {
	if len(e.Tail) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(e.Tail, " | "))
}

func (e *ExitError) Unwrap() error { return e.Err }

// TerminateGroup sends SIGTERM to process group pgid, waits up to grace for
// the group to disappear, then sends SIGKILL. A group that is already gone is
// not an error.
func TerminateGroup(pgid int, grace time.Duration) error {
	if pgid <= 0 {
		return nil
	}
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("sigterm process group %d: %w", pgid, err)
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if err := unix.Kill(-pgid, 0); errors.Is(err, unix.ESRCH) {
			return nil
		}
		time.Sleep(killPollPeriod)
	}
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("sigkill process group %d: %w", pgid, err)
	}
	return nil
}

// GroupKiller terminates process groups with TerminateGroup.
type GroupKiller struct{}

func (GroupKiller) Terminate(pgid int, grace time.Duration) error {
	return TerminateGroup(pgid, grace)
}

type commandExecutor struct {
	grace time.Duration
}

func (e commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = e.grace
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func (e commandExecutor) Stream(ctx context.Context, binary string, args []string, hooks StreamHooks) error {
	reader, writer, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("output pipe: %w", err)
	}
	defer reader.Close()

	cmd := exec.Command(binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = writer
	cmd.Stderr = writer
	if err := cmd.Start(); err != nil {
		_ = writer.Close()
		return fmt.Errorf("start command: %w", err)
	}
	_ = writer.Close()
	pgid := cmd.Process.Pid
	if hooks.OnStart != nil {
		hooks.OnStart(pgid)
	}

	var (
		stopOnce sync.Once
		stopWG   sync.WaitGroup
	)
	stop := func() {
		stopOnce.Do(func() {
			stopWG.Add(1)
			go func() {
				defer stopWG.Done()
				_ = TerminateGroup(pgid, e.grace)
			}()
		})
	}
	finished := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			stop()
		case <-finished:
		}
	}()

	aborted := false
	tail := make([]string, 0, tailLines)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if len(tail) == tailLines {
			tail = tail[1:]
		}
		tail = append(tail, line)
		if hooks.OnLine != nil && !hooks.OnLine(line) {
			aborted = true
			stop()
			break
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		stop()
	}
	_ = reader.Close()
	waitErr := cmd.Wait()
	close(finished)
	<-watcherDone
	stopWG.Wait()

	switch {
	case aborted:
		return ErrAborted
	case ctx.Err() != nil:
		return ctx.Err()
	case scanErr != nil:
		return fmt.Errorf("scan output: %w", scanErr)
	case waitErr != nil:
		return &ExitError{Err: waitErr, Tail: tail}
	}
	return nil
}
