package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"remap/internal/decompile"
	"remap/internal/history"
	"remap/internal/mapping"
	"remap/internal/paths"
	"remap/internal/session"
	"remap/internal/slogutil"
	"remap/internal/watcher"
)

var (
	viewRaw    bool
	viewFollow bool
)

var viewCmd = &cobra.Command{
	Use:   "view <class>...",
	Short: "Show decompiled source under the current names",
	Long: `Decompile classes with the configured decompiler (decompiler.command, or
decompiler.sourceDir for sources decompiled ahead of time) and rewrite the source
to the current names. Viewing a class selects it, as 'remap select' does.

Decompilation runs in the background; with decompiler.refreshOnSelect each
selection triggers it, and a newer request for the same class replaces an older
one still running.

With --follow the session is watched after the first rendering: whenever another
remap command saves it, the classes are decompiled again under the new names.
Stop with Ctrl-C.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().BoolVar(&viewRaw, "raw", false, "Show the source with its original names")
	viewCmd.Flags().BoolVarP(&viewFollow, "follow", "f", false, "Refresh the views when the session changes")
	rootCmd.AddCommand(viewCmd)
}

// ViewResultCLI is the source of one class
type ViewResultCLI struct {
	Class    string `json:"class"`
	Original string `json:"original"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error,omitempty"`
}

// viewer owns the requested classes. Its fields are only touched on the
// mutation loop.
type viewer struct {
	ws        *workspace
	scheduler *decompile.Scheduler
	ctx       context.Context
	order     []string
	titles    map[string]string
	results   chan ViewResultCLI
}

func newViewer(ctx context.Context, ws *workspace, scheduler *decompile.Scheduler, capacity int) *viewer {
	return &viewer{
		ws:        ws,
		scheduler: scheduler,
		ctx:       ctx,
		titles:    make(map[string]string),
		results:   make(chan ViewResultCLI, capacity),
	}
}

func (v *viewer) schedule(cm *mapping.ClassMapping) {
	class := cm.Original()
	if _, seen := v.titles[class]; !seen {
		v.order = append(v.order, class)
	}
	v.titles[class] = mapping.DottedName(cm.Current())
	v.scheduler.Request(v.ctx, decompile.SnapshotNames(v.ws.Table(), cm), v.deliver)
}

// deliver runs on the mutation loop and must not block it once the view is over
func (v *viewer) deliver(r decompile.Result) {
	view := ViewResultCLI{Class: v.titles[r.Class], Original: r.Class, Source: r.Source}
	if r.Err != nil {
		view.Error = r.Err.Error()
	}
	v.send(view)
}

func (v *viewer) send(view ViewResultCLI) {
	select {
	case v.results <- view:
	case <-v.ctx.Done():
	}
}

// selectAll selects each class and schedules its decompilation, either through
// the selection observer or directly when the selection adds nothing new. The
// observer maps titles back through the classes being selected here: a title is
// a current name and may equal another class's original name.
func (v *viewer) selectAll(refresh bool, args []string) error {
	selecting := make(map[string]*mapping.ClassMapping)
	sub := v.ws.History().SubscribeSelections(func(ev history.SelectionEvent) {
		if cm, ok := selecting[ev.Title]; ok && refresh {
			v.schedule(cm)
		}
	})
	defer sub.Unsubscribe()

	for _, arg := range args {
		cm, err := v.ws.ResolveClass(arg)
		if err != nil {
			return err
		}
		title := mapping.DottedName(cm.Current())
		selecting[title] = cm
		// original names resolve before current ones, so this selects cm itself
		selected, _, added, err := v.ws.SelectClass(cm.Original())
		delete(selecting, title)
		if err != nil {
			return err
		}
		if !added || !refresh {
			v.schedule(selected)
		}
	}
	return nil
}

// reload resumes the saved session and decompiles every class again. A class
// the new session no longer has is reported as an error view.
func (v *viewer) reload() error {
	if err := v.ws.Resume(v.ctx, v.ws.store); err != nil {
		return err
	}
	for _, class := range v.order {
		cm, err := v.ws.ResolveClass(class)
		if err != nil {
			v.send(ViewResultCLI{Class: v.titles[class], Original: class, Error: err.Error()})
			continue
		}
		v.schedule(cm)
	}
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	return withWorkspace(cmd, false, func(ctx context.Context, rt *runtime, ws *workspace) error {
		decompiler, err := decompile.FromConfig(rt.cfg.Decompiler, rt.root)
		if err != nil {
			return err
		}
		var remapper *decompile.Remapper
		if !viewRaw && rt.cfg.Decompiler.RemapSource {
			if decompile.Available() {
				remapper = decompile.NewRemapper()
			} else {
				rt.logger.Warn("Source remapping is not available in this build; showing original names")
			}
		}

		logger := slogutil.Component(rt.logger, "decompile")
		loop := session.NewLoop(len(args)*2+1, logger)
		defer loop.Close()
		scheduler := decompile.NewScheduler(decompiler, remapper, loop, logger)
		defer scheduler.Close()
		viewCtx, cancelView := context.WithCancel(ctx)
		defer cancelView()

		v := newViewer(viewCtx, ws, scheduler, len(args)*2)
		var order []string
		err = loop.Do(ctx, func() error {
			if err := v.selectAll(rt.cfg.Decompiler.RefreshOnSelect, args); err != nil {
				return err
			}
			order = append(order, v.order...)
			return ws.save(context.WithoutCancel(ctx))
		})
		if err != nil {
			return err
		}

		got := make(map[string]ViewResultCLI, len(order))
		for len(got) < len(order) {
			select {
			case r := <-v.results:
				got[r.Original] = r
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		views := make([]ViewResultCLI, 0, len(order))
		for _, class := range order {
			views = append(views, got[class])
		}
		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			if err := writeJSON(out, map[string]interface{}{"views": views}); err != nil {
				return err
			}
		} else {
			st := newStyler(out)
			for i, view := range views {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printView(out, st, view)
			}
		}

		if !viewFollow {
			return nil
		}
		return followViews(ctx, rt, loop, v, out)
	})
}

// followViews re-renders the views each time the session database changes on
// disk, until ctx is cancelled
func followViews(ctx context.Context, rt *runtime, loop *session.Loop, v *viewer, out io.Writer) error {
	changes := make(chan struct{}, 1)
	w := watcher.New(watcher.DefaultConfig(), slogutil.Component(rt.logger, "watcher"), func([]watcher.Event) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	dbPath := paths.GetSessionDBPath(rt.root)
	w.Watch(dbPath)
	w.Watch(dbPath + "-wal")
	w.Start(ctx)
	defer w.Stop()

	rt.logger.Info("Following session", "path", dbPath)
	st := newStyler(out)
	for {
		select {
		case <-changes:
			if err := loop.Do(ctx, v.reload); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				rt.logger.Warn("Failed to reload session", "error", err.Error())
			}
		case view := <-v.results:
			if rt.format == FormatJSON {
				if err := writeJSON(out, view); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(out)
			printView(out, st, view)
		case <-ctx.Done():
			return nil
		}
	}
}

func printView(out io.Writer, st styler, v ViewResultCLI) {
	fmt.Fprintf(out, "%s\n%s\n", st.AccentBold("// "+v.Class), st.Muted(rule(60)))
	if v.Error != "" {
		fmt.Fprintf(out, "%s %s\n", st.Failure("decompilation failed:"), v.Error)
		return
	}
	fmt.Fprint(out, v.Source)
}
