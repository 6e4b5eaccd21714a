package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/orchestrator"
	"github.com/horus-robotics/horus/internal/resolver"
	"github.com/horus-robotics/horus/internal/session"
	"github.com/horus-robotics/horus/internal/transport"
	"github.com/horus-robotics/horus/internal/workspace"
)

// watchDebounce matches SPEC_FULL.md §6's recovered `run --watch` detail:
// debounce source-change events 200ms before triggering a rebuild.
const watchDebounce = 200 * time.Millisecond

func newRunCmd() *cobra.Command {
	var buildOnly, release, clean, watch bool

	cmd := &cobra.Command{
		Use:   "run [path] [-- ARGS...]",
		Short: "Resolve dependencies, build, and launch one or many targets",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, extra := splitRunArgs(cmd.ArgsLenAtDash(), args)
			opts := orchestrator.LaunchOptions{Release: release, BuildOnly: buildOnly, ExtraArgs: extra}
			return runTargets(path, opts, clean, watch)
		},
	}

	cmd.Flags().BoolVar(&buildOnly, "build-only", false, "build without launching")
	cmd.Flags().BoolVar(&release, "release", false, "build with optimizations")
	cmd.Flags().BoolVar(&clean, "clean", false, "discard the build cache before building")
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild and relaunch on source change")
	return cmd
}

// splitRunArgs separates the target path from passthrough child args.
// argsLenAtDash is cobra's index of "--" within args (-1 if absent,
// pflag already strips the token itself): everything before it is this
// command's own positional args (just the target path), everything at
// or after it is forwarded to the launched process verbatim.
func splitRunArgs(argsLenAtDash int, args []string) (path string, extra []string) {
	if argsLenAtDash < 0 {
		if len(args) > 0 {
			return args[0], nil
		}
		return "", nil
	}
	if argsLenAtDash > 0 {
		path = args[0]
	}
	return path, args[argsLenAtDash:]
}

func runTargets(path string, opts orchestrator.LaunchOptions, clean, watch bool) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	targets, err := orchestrator.Resolve(path)
	if err != nil {
		return asUserError(err)
	}

	wsDir := workspaceDirFor(targets)
	ws, driver, installer, err := a.openWorkspace(wsDir)
	if err != nil {
		return err
	}
	if clean {
		_ = os.RemoveAll(ws.CacheDir())
		if err := os.MkdirAll(ws.CacheDir(), 0o755); err != nil {
			return asUserError(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := resolveAndInstall(ctx, a, installer, wsDir); err != nil {
		return err
	}

	launch := func(ctx context.Context) (orchestrator.Result, error) {
		sess, err := session.Create(transport.DefaultShmRoot())
		if err != nil {
			return orchestrator.Result{}, asUserError(err)
		}
		l := &orchestrator.Launcher{
			WS:       ws,
			Driver:   driver,
			Cache:    a.cache,
			Sess:     sess,
			Logger:   a.logger,
			Stdout:   os.Stdout,
			Colorize: true,
		}
		return l.Launch(ctx, targets, opts)
	}

	if !watch {
		result, err := launch(ctx)
		if err != nil {
			return asUserError(err)
		}
		if result.ExitCode != 0 {
			os.Exit(result.ExitCode)
		}
		return nil
	}

	return runWatchLoop(ctx, wsDir, launch)
}

// runWatchLoop re-runs launch each time a source file under wsDir
// changes, debounced per watchDebounce, per SPEC_FULL.md §6's recovered
// `run --watch` behavior. It returns an error when the watcher fails to
// start, and returns nil once the parent context is cancelled or a launch
// exits on its own (a launch error is printed to stderr first).
func runWatchLoop(parent context.Context, wsDir string, launch func(context.Context) (orchestrator.Result, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return asUserError(fmt.Errorf("run --watch: starting file watcher: %w", err))
	}
	defer watcher.Close()
	if err := watcher.Add(wsDir); err != nil {
		return asUserError(fmt.Errorf("run --watch: watching %s: %w", wsDir, err))
	}

	for {
		runCtx, cancelRun := context.WithCancel(parent)
		done := make(chan struct{})
		go func() {
			if _, err := launch(runCtx); err != nil {
				fmt.Fprintln(os.Stderr, renderError(err))
			}
			close(done)
		}()

		if !waitForChangeOrExit(watcher, parent, done) {
			cancelRun()
			<-done
			return nil
		}
		cancelRun()
		<-done
		fmt.Fprintln(os.Stderr, "--watch: change detected, relaunching")
	}
}

// waitForChangeOrExit blocks until a debounced file-system event fires
// (returns true, asking the caller to relaunch) or the running launch
// exits or the parent context is cancelled (returns false).
func waitForChangeOrExit(watcher *fsnotify.Watcher, parent context.Context, done <-chan struct{}) bool {
	var timer *time.Timer
	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C
		}
		select {
		case <-parent.Done():
			return false
		case <-done:
			return false
		case <-timerC:
			return true
		case ev, ok := <-watcher.Events:
			if !ok {
				return false
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
		case <-watcher.Errors:
			continue
		}
	}
}

// workspaceDirFor picks the directory whose .horus/ overlay governs the
// resolved targets: the first target's manifest directory, or the
// current directory when targets carry no manifest directory of their
// own (a bare file with no horus.yaml).
func workspaceDirFor(targets []orchestrator.Target) string {
	for _, t := range targets {
		if t.Manifest != nil && t.Manifest.Dir != "" {
			return t.Manifest.Dir
		}
	}
	return "."
}

// resolveAndInstall runs the dependency resolver over wsDir's own
// horus.yaml (if present) and installs the resulting solution into ws.
// A target directory with no horus.yaml of its own (a bare source file)
// has nothing to resolve.
func resolveAndInstall(ctx context.Context, a *app, installer *workspace.Installer, wsDir string) error {
	manifestPath := filepath.Join(wsDir, "horus.yaml")
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil
	}

	rp := newRoutingProvider(ctx, a.adapters, a.prompter)
	sol, err := resolver.New(rp).Resolve(ctx, manifestSpecs(m))
	if err != nil {
		return asUserError(fmt.Errorf("resolving dependencies: %w", err))
	}

	locked, err := rp.lockedFromSolution(ctx, sol)
	if err != nil {
		return asNetworkError(fmt.Errorf("fetching resolved packages: %w", err))
	}
	lockedByName := make(map[string]manifest.LockedPackage, len(locked))
	for _, p := range locked {
		lockedByName[p.Name] = p
	}

	if err := installer.InstallAll(ctx, locked, lockedByName); err != nil {
		return asNetworkError(fmt.Errorf("installing dependencies: %w", err))
	}
	return nil
}
