package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/otaswap/cmd/otaswap/opts"
	"github.com/walteh/otaswap/pkg/operation"
	"gitlab.com/tozd/go/errors"
)

func TestFormatVersion(t *testing.T) {
	out := FormatVersion(&VersionInfo{
		Version:   "v1.2.3",
		GoVersion: "go1.23.5",
		Platform:  "darwin/arm64",
		Revision:  "abc123",
		Time:      "2025-01-01T00:00:00Z",
		Modified:  true,
	})
	assert.Contains(t, out, "Version:   v1.2.3")
	assert.Contains(t, out, "Revision:  abc123 (modified)")
	assert.Contains(t, out, "Platform:  darwin/arm64")
}

func TestVersionCmd(t *testing.T) {
	cmd := NewVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "otaswap version info")
}

func TestResultError(t *testing.T) {
	for outcome, wantErr := range map[operation.Outcome]bool{
		operation.OutcomeUpToDate:        false,
		operation.OutcomeInstalled:       false,
		operation.OutcomeSkippedPolicy:   false,
		operation.OutcomeTransportFailed: true,
		operation.OutcomeInstallFailed:   true,
	} {
		err := resultError(&operation.Result{Outcome: outcome})
		assert.Equal(t, wantErr, err != nil, outcome.String())
	}
}

func TestCommands_SurfaceBuildErrors(t *testing.T) {
	root := &opts.RootOpts{Build: func(ctx context.Context, o *opts.RootOpts) (*opts.App, error) {
		return nil, errors.New("bad config")
	}}

	for _, cmd := range []*cobra.Command{NewCheckCmd(root), NewClearCmd(root), NewStatusCmd(root), NewHistoryCmd(root), NewApplyCmd(root), NewWatchCmd(root)} {
		cmd.SetArgs([]string{})
		cmd.SilenceUsage = true
		err := cmd.ExecuteContext(context.Background())
		assert.ErrorContains(t, err, "bad config")
	}
}
