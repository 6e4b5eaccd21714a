package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/horus-robotics/horus/internal/buildsys"
	"github.com/horus-robotics/horus/internal/cache"
	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/session"
	"github.com/horus-robotics/horus/internal/workspace"
)

// childColors cycles through a small fixed palette so each launched
// child gets a stable color by index, mirroring the teacher's own
// ANSI level-coloring logger (kernel/utils/logger.go) applied here per
// child instead of per log level.
var childColors = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgMagenta),
	color.New(color.FgYellow),
	color.New(color.FgGreen),
	color.New(color.FgBlue),
	color.New(color.FgRed),
}

// pollInterval is the orchestrator's child-completion poll tick, per
// spec.md §4.7 step 5 ("Poll children with a 100ms tick").
const pollInterval = 100 * time.Millisecond

// Launcher drives spec.md §4.7: concurrent build then launch of a set of
// resolved targets, with fan-in logging and signal-driven shutdown.
type Launcher struct {
	WS     *workspace.Workspace
	Driver *buildsys.Driver
	Cache  *cache.Store
	Sess   *session.Session
	Logger *slog.Logger
	Stdout io.Writer

	// Colorize controls whether per-child output is ANSI-colored.
	Colorize bool
}

// LaunchOptions configures one Launch call.
type LaunchOptions struct {
	Release    bool
	BuildOnly  bool
	ExtraArgs  []string
}

// Result is the outcome of a Launch call: spec.md §4.7 "Partial failure"
// — the orchestrator's exit code is the max of children's codes (0 if
// all succeeded, 1 if any failed, or 130 if shutdown was requested via
// signal).
type Result struct {
	ExitCode int
	Signaled bool
}

// Launch implements the full spec.md §4.7 sequence: build all targets
// (native ones in a batch), install a cancellation handler, spawn all
// children concurrently, fan in their stdio, poll for completion, and
// clean up the session directory on exit.
func (l *Launcher) Launch(ctx context.Context, targets []Target, opts LaunchOptions) (Result, error) {
	defer func() {
		if err := l.Sess.Destroy(); err != nil {
			l.Logger.Warn("failed to remove session directory", "error", err)
		}
	}()

	if err := l.build(ctx, targets, opts.Release); err != nil {
		return Result{ExitCode: 1}, err
	}
	if opts.BuildOnly {
		return Result{ExitCode: 0}, nil
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	procs := make([]*process, len(targets))
	for i, t := range targets {
		procs[i] = newProcess(t, i, opts.ExtraArgs, l)
	}

	for _, p := range procs {
		if err := p.start(l.Sess); err != nil {
			l.Logger.Error("failed to start child", "name", p.target.Name, "error", err)
			p.exitCode.Store(1)
			p.done.Store(true)
			continue
		}
		fmt.Fprintf(l.Stdout, "Started [%s]\n", p.target.Name)
	}

	signaled := l.pollUntilDone(sigCtx, procs)

	return Result{ExitCode: finalExitCode(procs, signaled), Signaled: signaled}, nil
}

// pollUntilDone implements spec.md §4.7 steps 2 and 5: on cancellation it
// signals every still-running child once (in creation order), and it
// polls at pollInterval until every child has exited or shutdown was
// requested and none remain.
func (l *Launcher) pollUntilDone(ctx context.Context, procs []*process) (signaled bool) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	signalSent := false
	for {
		allDone := true
		for _, p := range procs {
			if p.cmd != nil && !p.done.Load() {
				allDone = false
			}
		}
		if allDone {
			return signaled
		}

		select {
		case <-ctx.Done():
			signaled = true
			if !signalSent {
				signalSent = true
				for _, p := range procs {
					p.terminate()
				}
			}
		case <-ticker.C:
		}

		for _, p := range procs {
			p.reap()
		}
	}
}

// build compiles every target, batching native ones in a single
// toolchain invocation per spec.md §4.7 step 1 and §4.6 "Batch
// optimization". Interpreted targets have no compile step.
func (l *Launcher) build(ctx context.Context, targets []Target, release bool) error {
	depsHash, err := l.overlayDepsHash()
	if err != nil {
		return err
	}

	var native []buildsys.Target
	var interpreted []buildsys.Target
	sourcesByName := make(map[string][]string)

	for _, t := range targets {
		bt := buildsys.Target{Name: t.Name, Manifest: t.Manifest, SourcePath: t.SourcePath, Release: release}
		switch t.Manifest.Language {
		case manifest.LanguagePython:
			interpreted = append(interpreted, bt)
		default:
			native = append(native, bt)
			sourcesByName[t.Name] = sourceFilesFor(t)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(native) == 0 {
			return nil
		}
		_, err := l.Driver.BuildBatch(gctx, native, sourcesByName, depsHash)
		return err
	})
	g.Go(func() error {
		for _, t := range interpreted {
			if _, err := l.Driver.Build(gctx, t, nil, depsHash); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

// overlayDepsHash feeds the build-cache key's overlay-dependency
// component (spec.md §9 open-question resolution: content hash, not
// mtime).
func (l *Launcher) overlayDepsHash() (string, error) {
	if _, err := os.Stat(l.WS.PackagesDir()); err != nil {
		return "", nil
	}
	return cache.HashDir(l.WS.PackagesDir())
}

// sourceFilesFor returns the file set ComputeCacheKey should track mtimes
// for: a Rust target's Cargo.toml (cargo owns the rest of its own
// dependency/mtime tracking) or a C/C++ target's sibling sources.
func sourceFilesFor(t Target) []string {
	if t.Manifest.Language != manifest.LanguageCpp {
		return []string{t.SourcePath}
	}
	dir := filepath.Dir(t.SourcePath)
	var out []string
	for _, ext := range []string{"*.c", "*.cpp", "*.cc"} {
		matches, _ := filepath.Glob(filepath.Join(dir, ext))
		out = append(out, matches...)
	}
	return out
}

// finalExitCode computes spec.md §4.7 "Partial failure": the max of
// children's exit codes, or 130 when shutdown was requested via signal
// and every child has since exited.
func finalExitCode(procs []*process, signaled bool) int {
	if signaled {
		return 130
	}
	max := 0
	for _, p := range procs {
		if c := int(p.exitCode.Load()); c > max {
			max = c
		}
	}
	return max
}

// process wraps one spawned child: its *exec.Cmd, stdio pipes, and the
// bookkeeping the poll loop and fan-in goroutines share.
type process struct {
	target Target
	index  int
	args   []string
	l      *Launcher

	cmd         *exec.Cmd
	stdout      io.ReadCloser
	stderr      io.ReadCloser
	stdioWG     sync.WaitGroup
	done        atomic.Bool
	exitCode    atomic.Int32
	waitStarted atomic.Bool
}

func newProcess(t Target, index int, args []string, l *Launcher) *process {
	return &process{target: t, index: index, args: args, l: l}
}

func (p *process) start(sess *session.Session) error {
	artifactOrSource := p.target.SourcePath
	var cmd *exec.Cmd
	switch p.target.Manifest.Language {
	case manifest.LanguagePython:
		cmd = exec.Command("python3", append([]string{artifactOrSource}, p.args...)...)
	default:
		cmd = exec.Command(artifactOrSource, p.args...)
	}
	cmd.Env = append(os.Environ(), sess.Env())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	p.cmd, p.stdout, p.stderr = cmd, stdout, stderr

	// Own fan-in as part of this process's lifecycle: reap must not call
	// cmd.Wait() until both readers have drained the pipes (os/exec's own
	// doc for StdoutPipe/StderrPipe: "it is incorrect to call Wait before
	// all reads from the pipe have completed" — Wait closes the pipe as
	// soon as it sees the child exit, which can truncate a reader still
	// mid-read of a final burst of output).
	p.stdioWG.Add(2)
	go func() { defer p.stdioWG.Done(); p.fanIn(p.stdout, false) }()
	go func() { defer p.stdioWG.Done(); p.fanIn(p.stderr, true) }()
	return nil
}

// fanIn tags each line from a child's stdout/stderr pipe with its name in
// a stable per-index color and forwards it to the orchestrator's output
// stream, per spec.md §4.7 step 4.
func (p *process) fanIn(r io.Reader, isErr bool) {
	c := childColors[p.index%len(childColors)]
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		prefix := fmt.Sprintf("[%s]", p.target.Name)
		if p.l.Colorize {
			prefix = c.Sprint(prefix)
		}
		stream := p.l.Stdout
		if isErr {
			stream = p.l.Stdout // unified fan-in stream per spec.md; stderr is tagged, not routed separately
		}
		fmt.Fprintf(stream, "%s %s\n", prefix, scanner.Text())
	}
}

// terminate sends the platform's graceful termination signal once. A
// forcible kill after a grace window is permitted by spec.md §5 but not
// mandated, and isn't applied here.
func (p *process) terminate() {
	if p.cmd == nil || p.cmd.Process == nil || p.done.Load() {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
}

// reap performs a non-blocking check for the child having exited. Because
// os/exec offers no non-blocking Wait, each child owns a single
// background waiter goroutine started lazily on first reap call.
func (p *process) reap() {
	if p.cmd == nil || p.done.Load() {
		return
	}
	if !p.waitStarted.CompareAndSwap(false, true) {
		return
	}
	go func() {
		p.stdioWG.Wait()
		err := p.cmd.Wait()
		code := 0
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
				if code < 0 {
					code = 1 // killed by signal
				}
			} else {
				code = 1
			}
		}
		p.exitCode.Store(int32(code))
		p.done.Store(true)
	}()
}
