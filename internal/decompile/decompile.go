// Package decompile produces Java source for a class of the loaded archive and
// rewrites it to the current names of the mapping table.
package decompile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"remap/internal/config"
	"remap/internal/mapping"
	"remap/internal/paths"
)

// Decompiler turns one class, given by original internal name, into Java source
// that still uses original names
type Decompiler interface {
	Decompile(ctx context.Context, class string) (string, error)
}

// SourceDir serves sources decompiled ahead of time: <Dir>/a/b/C.java holds a/b/C
// and all of its inner classes.
type SourceDir struct {
	Dir string
}

// Decompile implements Decompiler
func (d SourceDir) Decompile(ctx context.Context, class string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(d.Dir, filepath.FromSlash(TopLevel(class))+".java")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("no source for %s: %w", class, err)
	}
	return string(data), nil
}

// Command runs an external decompiler and returns its standard output. Each
// argument may contain {class} (internal name) or {name} (dotted name).
type Command struct {
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Decompile implements Decompiler
func (c Command) Decompile(ctx context.Context, class string) (string, error) {
	if len(c.Args) == 0 {
		return "", fmt.Errorf("decompiler command is empty")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	replacer := strings.NewReplacer("{class}", class, "{name}", mapping.DottedName(class))
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = replacer.Replace(a)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("decompiler failed for %s: %w: %s", class, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// FromConfig builds the configured decompiler. A command takes precedence over a
// source directory; relative paths resolve against root.
func FromConfig(cfg config.DecompilerConfig, root string) (Decompiler, error) {
	switch {
	case len(cfg.Command) > 0:
		return Command{
			Args:    cfg.Command,
			Dir:     root,
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		}, nil
	case cfg.SourceDir != "":
		return SourceDir{Dir: paths.Resolve(root, cfg.SourceDir)}, nil
	default:
		return nil, fmt.Errorf("no decompiler configured; set decompiler.command or decompiler.sourceDir")
	}
}

// TopLevel returns the outermost class of an internal name (a/B$C$D -> a/B)
func TopLevel(class string) string {
	slash := strings.LastIndexByte(class, '/')
	if i := strings.IndexByte(class[slash+1:], '$'); i > 0 {
		return class[:slash+1+i]
	}
	return class
}
