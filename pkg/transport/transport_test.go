package transport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

type stubTransport struct{ token string }

func (s *stubTransport) Fetch(ctx context.Context, req Request, progress chan<- Progress) (*Result, error) {
	return &Result{Kind: KindPulled, BundlePath: req.CandidatePath()}, nil
}

func TestRegistry(t *testing.T) {
	Register("stub", func(ctx context.Context, opts Options) (Transport, error) {
		return &stubTransport{token: opts.Token}, nil
	})

	tr, err := New(context.Background(), "stub", Options{Token: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "secret", tr.(*stubTransport).token)
	assert.Contains(t, Names(), "stub")

	_, err = New(context.Background(), "carrier-pigeon", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stub", "error should list the available transports")
}

func TestRequest_Validate(t *testing.T) {
	valid := Request{URL: "https://example.com/app.git", Branch: "main", LocalFolder: "/tmp/src", BundlePath: "android/output/index.android.bundle"}
	require.NoError(t, valid.Validate())
	assert.Equal(t, filepath.Join("/tmp/src", "android", "output", "index.android.bundle"), valid.CandidatePath())

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{name: "missing_url", mutate: func(r *Request) { r.URL = " " }},
		{name: "missing_branch", mutate: func(r *Request) { r.Branch = "" }},
		{name: "missing_folder", mutate: func(r *Request) { r.LocalFolder = "" }},
		{name: "missing_bundle", mutate: func(r *Request) { r.BundlePath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTransport))
		})
	}
}

func TestProgress_Percent(t *testing.T) {
	assert.Equal(t, -1, Progress{Received: 5}.Percent())
	assert.Equal(t, 50, Progress{Received: 5, Total: 10}.Percent())
	assert.Equal(t, 100, Progress{Received: 12, Total: 10}.Percent())
}

func TestNotify_NeverBlocks(t *testing.T) {
	Notify(nil, Progress{Received: 1})

	ch := make(chan Progress, 1)
	Notify(ch, Progress{Received: 1, Total: 2})
	Notify(ch, Progress{Received: 2, Total: 2})
	got := <-ch
	assert.Equal(t, int64(1), got.Received, "a full channel drops later updates")
}
