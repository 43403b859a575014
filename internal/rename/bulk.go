package rename

import (
	"context"
	"log/slog"
	"strconv"

	ignore "github.com/sabhiram/go-gitignore"

	"remap/internal/config"
	"remap/internal/errors"
	"remap/internal/history"
	"remap/internal/mapping"
)

// maxCandidateAttempts bounds the counter search for one symbol
const maxCandidateAttempts = 10000

// Options configures the synthetic naming scheme of bulk passes
type Options struct {
	ClassPrefix  string
	FieldPrefix  string
	MethodPrefix string
	Start        int
	KeepPackages bool
	// Exclude holds gitignore-style patterns matched against class original names
	Exclude []string
	// KeepMembers lists member names that bulk passes never touch
	KeepMembers []string
}

// OptionsFromConfig reads the naming and bulk sections of cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ClassPrefix:  cfg.Naming.ClassPrefix,
		FieldPrefix:  cfg.Naming.FieldPrefix,
		MethodPrefix: cfg.Naming.MethodPrefix,
		Start:        cfg.Naming.Start,
		KeepPackages: cfg.Naming.KeepPackages,
		Exclude:      cfg.Bulk.Exclude,
		KeepMembers:  cfg.Bulk.KeepMembers,
	}
}

// Skipped is a symbol a bulk pass left alone
type Skipped struct {
	Symbol *mapping.SymbolMapping
	Reason string
}

// Report lists what a bulk pass did
type Report struct {
	Actions []*history.RenameAction
	Skipped []Skipped
	// Cancelled is set when the context ended the pass early
	Cancelled bool
}

func (r *Report) skip(sym *mapping.SymbolMapping, reason string) {
	r.Skipped = append(r.Skipped, Skipped{Symbol: sym, Reason: reason})
}

// BulkRenamer drives the engine over many symbols with a deterministic naming scheme.
// Every rename goes through Engine.Rename.
type BulkRenamer struct {
	engine  *Engine
	opts    Options
	exclude *ignore.GitIgnore
	keep    map[string]struct{}
	logger  *slog.Logger
}

// counters hold the next number per kind for one pass
type counters struct {
	class, field, method int
}

// NewBulkRenamer creates a bulk renamer for engine
func NewBulkRenamer(engine *Engine, opts Options, logger *slog.Logger) *BulkRenamer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &BulkRenamer{
		engine: engine,
		opts:   opts,
		keep:   make(map[string]struct{}, len(opts.KeepMembers)),
		logger: logger,
	}
	if len(opts.Exclude) > 0 {
		b.exclude = ignore.CompileIgnoreLines(opts.Exclude...)
	}
	for _, name := range opts.KeepMembers {
		b.keep[name] = struct{}{}
	}
	return b
}

// Excluded reports whether a class is matched by the exclusion patterns
func (b *BulkRenamer) Excluded(cm *mapping.ClassMapping) bool {
	return b.exclude != nil && b.exclude.MatchesPath(cm.Original())
}

// RenameAllUnique gives every class, field and method that still carries its
// original name a fresh synthetic name. Classes come first, in original-name order,
// then each class's fields and methods in signature order. Running it on two
// identical tables yields identical assignments.
func (b *BulkRenamer) RenameAllUnique(ctx context.Context) (Report, error) {
	var report Report
	n := b.newCounters()
	table := b.engine.Table()
	classes := table.Classes()
	taken := table.TakenNames()

	for _, cm := range classes {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			return report, err
		}
		if b.Excluded(cm) {
			report.skip(cm.Name(), "excluded")
			continue
		}
		if cm.Name().IsRenamed() {
			continue
		}
		b.renameClass(cm, &n, taken, &report)
	}

	for _, cm := range classes {
		if b.Excluded(cm) {
			continue
		}
		if err := b.renameMembers(ctx, cm, &n, &report); err != nil {
			return report, err
		}
	}

	b.logger.Info("Bulk rename finished",
		"renamed", len(report.Actions),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// RenameClassMembers applies the naming scheme to one class's fields and methods
func (b *BulkRenamer) RenameClassMembers(ctx context.Context, cm *mapping.ClassMapping) (Report, error) {
	var report Report
	n := b.newCounters()
	err := b.renameMembers(ctx, cm, &n, &report)
	b.logger.Info("Renamed class members",
		"class", cm.Current(),
		"renamed", len(report.Actions),
	)
	return report, err
}

// ResetMembers renames every renamed field and method of cm back to its original
// name through the engine, so each reset is a recorded action. Members blocked by
// each other are retried on later passes; a cycle is broken by parking one member
// under a temporary synthetic name.
func (b *BulkRenamer) ResetMembers(cm *mapping.ClassMapping) Report {
	var report Report
	var pending []*mapping.SymbolMapping
	for _, sym := range cm.Members() {
		if sym.IsRenamed() {
			pending = append(pending, sym)
		}
	}

	n := b.newCounters()
	parked := make(map[*mapping.SymbolMapping]bool)
	for len(pending) > 0 {
		var blocked []*mapping.SymbolMapping
		for _, sym := range pending {
			out, err := b.engine.Rename(sym, sym.Original(), sym.Kind())
			switch {
			case err == nil:
				if out.Action != nil {
					report.Actions = append(report.Actions, out.Action)
				}
			case errors.HasCode(err, errors.NameConflict):
				blocked = append(blocked, sym)
			default:
				report.skip(sym, err.Error())
			}
		}
		if len(blocked) == len(pending) {
			sym := heldByPeer(blocked)
			if sym == nil || parked[sym] || !b.park(sym, &n, &report) {
				for _, s := range blocked {
					report.skip(s, "original name is in use")
				}
				break
			}
			parked[sym] = true
		}
		pending = blocked
	}

	b.logger.Info("Reset class members",
		"class", cm.Current(),
		"reset", len(report.Actions),
		"skipped", len(report.Skipped),
	)
	return report
}

// heldByPeer returns a blocked member whose current name is the original name of
// another blocked member, or nil when nothing blocked is held by a peer
func heldByPeer(blocked []*mapping.SymbolMapping) *mapping.SymbolMapping {
	for _, sym := range blocked {
		for _, other := range blocked {
			if other == sym || other.Kind() != sym.Kind() || other.Current() != sym.Original() {
				continue
			}
			if sym.Kind() == mapping.KindField || other.Desc() == sym.Desc() {
				return other
			}
		}
	}
	return nil
}

// park moves sym to a free synthetic name so the member holding its original can move
func (b *BulkRenamer) park(sym *mapping.SymbolMapping, n *counters, report *Report) bool {
	for i := 0; i < maxCandidateAttempts; i++ {
		out, err := b.engine.Rename(sym, b.memberCandidate(sym.Kind(), n), sym.Kind())
		if err == nil {
			report.Actions = append(report.Actions, out.Action)
			return true
		}
		if !errors.HasCode(err, errors.NameConflict) {
			return false
		}
	}
	return false
}

func (b *BulkRenamer) renameClass(cm *mapping.ClassMapping, n *counters, taken map[string]struct{}, report *Report) {
	for i := 0; i < maxCandidateAttempts; i++ {
		candidate := b.classCandidate(cm, n)
		if _, used := taken[candidate]; used {
			continue
		}
		previous := cm.Current()
		out, err := b.engine.Rename(cm.Name(), candidate, mapping.KindClass)
		switch {
		case err == nil:
			delete(taken, previous)
			taken[candidate] = struct{}{}
			report.Actions = append(report.Actions, out.Action)
			return
		case errors.HasCode(err, errors.NameConflict):
			taken[candidate] = struct{}{}
			continue
		default:
			report.skip(cm.Name(), err.Error())
			return
		}
	}
	report.skip(cm.Name(), "no free name found")
}

func (b *BulkRenamer) renameMembers(ctx context.Context, cm *mapping.ClassMapping, n *counters, report *Report) error {
	for _, sym := range cm.Members() {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			return err
		}
		if sym.IsRenamed() {
			continue
		}
		if mapping.IsSpecialMethod(sym.Original()) {
			continue
		}
		if _, keep := b.keep[sym.Original()]; keep {
			report.skip(sym, "kept by name")
			continue
		}
		b.renameMember(sym, n, report)
	}
	return nil
}

func (b *BulkRenamer) renameMember(sym *mapping.SymbolMapping, n *counters, report *Report) {
	for i := 0; i < maxCandidateAttempts; i++ {
		out, err := b.engine.Rename(sym, b.memberCandidate(sym.Kind(), n), sym.Kind())
		switch {
		case err == nil:
			report.Actions = append(report.Actions, out.Action)
			return
		case errors.HasCode(err, errors.NameConflict):
			continue
		default:
			report.skip(sym, err.Error())
			return
		}
	}
	report.skip(sym, "no free name found")
}

// classCandidate returns the next class name and advances the counter.
// Inner classes are named after their outer class's current name.
func (b *BulkRenamer) classCandidate(cm *mapping.ClassMapping, n *counters) string {
	simple := b.opts.ClassPrefix + strconv.Itoa(n.class)
	n.class++
	if cm.IsInner() {
		if outer, ok := b.engine.Table().Get(cm.Outer()); ok && outer.Original() == cm.Outer() {
			return outer.Current() + "$" + simple
		}
	}
	if b.opts.KeepPackages {
		if pkg := cm.Package(); pkg != "" {
			return pkg + "/" + simple
		}
	}
	return simple
}

func (b *BulkRenamer) memberCandidate(kind mapping.Kind, n *counters) string {
	if kind == mapping.KindField {
		name := b.opts.FieldPrefix + strconv.Itoa(n.field)
		n.field++
		return name
	}
	name := b.opts.MethodPrefix + strconv.Itoa(n.method)
	n.method++
	return name
}

func (b *BulkRenamer) newCounters() counters {
	return counters{class: b.opts.Start, field: b.opts.Start, method: b.opts.Start}
}
