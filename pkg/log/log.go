// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/fingerprint"
	"github.com/walteh/otaswap/pkg/operation"
	"github.com/walteh/otaswap/pkg/transport"
)

// 🎨 Display configuration
const (
	fieldIndent = 2  // spaces to indent key/value fields
	fieldWidth  = 18 // width of the field name column
)

// ConfirmFunc asks a yes/no question.
type ConfirmFunc func(prompt string) (bool, error)

// 🎯 Console renders runs for a person at a terminal. It implements the
// orchestrator's Prompter, so only interactive runs ever reach it.
type Console struct {
	zlog    zerolog.Logger
	console io.Writer
	confirm ConfirmFunc
	mu      sync.Mutex
	lastPct int
}

// Option configures a Console.
type Option func(*Console)

// WithConfirm replaces the interactive terminal prompt.
func WithConfirm(fn ConfirmFunc) Option {
	return func(c *Console) { c.confirm = fn }
}

// 🏭 New creates a console writing to console. zlog receives a copy of
// every message.
func New(console io.Writer, zlog zerolog.Logger, opts ...Option) *Console {
	c := &Console{
		zlog:    zlog,
		console: console,
		confirm: ptermConfirm,
		lastPct: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func ptermConfirm(prompt string) (bool, error) {
	return pterm.DefaultInteractiveConfirm.WithDefaultValue(false).Show(prompt)
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the console from context
func FromContext(ctx context.Context) *Console {
	c, ok := ctx.Value(contextKey{}).(*Console)
	if !ok {
		panic("console not found in context")
	}
	return c
}

// 🎯 NewContext adds the console to context
func NewContext(ctx context.Context, c *Console) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// 📊 Report prints the outcome of a run.
func (c *Console) Report(ctx context.Context, res *operation.Result) {
	switch res.Outcome {
	case operation.OutcomeUpToDate:
		c.Successf("bundle is up to date%s", shortSuffix(res.Fingerprint))
	case operation.OutcomeInstalled:
		c.Successf("installed bundle%s", shortSuffix(res.Fingerprint))
		for _, w := range res.Warnings {
			c.Warningf("cache invalidation: %s", w.Error())
		}
	case operation.OutcomeTransportFailed:
		c.Errorf("could not fetch update: %s", res.Message)
	case operation.OutcomeInstallFailed:
		c.Errorf("could not install update: %s", res.Message)
	case operation.OutcomeSkippedPolicy:
		c.Warningf("check skipped: %s", res.Message)
	}
}

// ❓ ConfirmRestart asks whether to restart into the installed bundle.
func (c *Console) ConfirmRestart(ctx context.Context, res *operation.Result) (bool, error) {
	ok, err := c.confirm(fmt.Sprintf("Restart now to load bundle %s?", fingerprint.Short(res.Fingerprint)))
	if err != nil {
		return false, err
	}
	c.zlog.Info().Bool("confirmed", ok).Msg("restart prompt answered")
	return ok, nil
}

// ⬇️ Progress prints transport progress, once per whole percent.
func (c *Console) Progress(p transport.Progress) {
	pct := p.Percent()
	if pct < 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pct == c.lastPct {
		return
	}
	c.lastPct = pct
	fmt.Fprintf(c.console, "\r%s %s", color.New(color.FgCyan).Sprint("⬇"), fmt.Sprintf("downloading %3d%%", pct))
	if pct == 100 {
		fmt.Fprintln(c.console)
		c.lastPct = -1
	}
}

// 📝 Field prints an aligned key/value line
func (c *Console) Field(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "%*s%s %v\n",
		fieldIndent, "",
		color.New(color.Faint).Sprint(fmt.Sprintf("%-*s", fieldWidth, name)),
		formatValue(value))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return "never"
		}
		return x.Local().Format(time.RFC3339)
	case time.Duration:
		if x == 0 {
			return "off"
		}
		return x.String()
	case bool:
		if x {
			return color.New(color.FgGreen).Sprint("yes")
		}
		return color.New(color.FgYellow).Sprint("no")
	case string:
		if x == "" {
			return "-"
		}
		return x
	default:
		return fmt.Sprint(v)
	}
}

func shortSuffix(fp string) string {
	if fp == "" {
		return ""
	}
	return " " + fingerprint.Short(fp)
}

// 📝 Header logs a header
func (c *Console) Header(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("otaswap")
	fmt.Fprintf(c.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	c.zlog.Debug().Msg(msg)
}

// 📝 Success logs a success message
func (c *Console) Success(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	c.zlog.Debug().Msg(msg)
}

// 📝 Warning logs a warning message
func (c *Console) Warning(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	c.zlog.Debug().Msg(msg)
}

// 📝 Error logs an error message
func (c *Console) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	c.zlog.Debug().Msg(msg)
}

// 📝 Info logs an info message
func (c *Console) Info(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	c.zlog.Debug().Msg(msg)
}

func (c *Console) Infof(format string, args ...any) {
	c.Info(fmt.Sprintf(format, args...))
}

func (c *Console) Warningf(format string, args ...any) {
	c.Warning(fmt.Sprintf(format, args...))
}

func (c *Console) Errorf(format string, args ...any) {
	c.Error(fmt.Sprintf(format, args...))
}

func (c *Console) Successf(format string, args ...any) {
	c.Success(fmt.Sprintf(format, args...))
}
