package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls [][]string
	env   []string
	dir   string
	err   error
	// create is written when the fake "downloads".
	create string
}

func (f *fakeRunner) Run(_ context.Context, argv, env []string, dir string) error {
	f.calls = append(f.calls, argv)
	f.env, f.dir = env, dir
	if f.err != nil {
		return f.err
	}
	if f.create != "" {
		return os.WriteFile(f.create, []byte("jar"), 0o644)
	}
	return nil
}

func setup(t *testing.T, mode Mode, installed bool) (*Updater, *fakeRunner, string) {
	t.Helper()
	dir := t.TempDir()
	jar := filepath.Join(dir, "server", "Server.jar")
	if installed {
		require.NoError(t, os.MkdirAll(filepath.Dir(jar), 0o755))
		require.NoError(t, os.WriteFile(jar, []byte("old"), 0o644))
	}
	r := &fakeRunner{create: jar}
	u := New(Options{
		Mode:                 mode,
		Command:              "downloader -quiet",
		ServerDir:            filepath.Join(dir, "server"),
		ServerJar:            jar,
		DownloaderCredential: filepath.Join(dir, "downloader.json"),
		Runner:               r,
	})
	return u, r, jar
}

func TestUpdate_Modes(t *testing.T) {
	tests := []struct {
		mode      Mode
		installed bool
		runs      int
	}{
		{Always, true, 1},
		{Always, false, 1},
		{Missing, true, 0},
		{Missing, false, 1},
		{Never, true, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			u, r, _ := setup(t, tt.mode, tt.installed)
			require.NoError(t, u.Update(context.Background()))
			assert.Len(t, r.calls, tt.runs)
		})
	}
}

func TestUpdate_PassesCommandAndEnv(t *testing.T) {
	u, r, _ := setup(t, Missing, false)
	require.NoError(t, u.Update(context.Background()))

	assert.Equal(t, [][]string{{"downloader", "-quiet"}}, r.calls)
	assert.Equal(t, u.opts.ServerDir, r.dir)
	assert.Contains(t, r.env, "DOWNLOADER_CREDENTIALS="+u.opts.DownloaderCredential)
}

func TestUpdate_NeverWithoutFilesFails(t *testing.T) {
	u, r, _ := setup(t, Never, false)

	err := u.Update(context.Background())
	require.ErrorIs(t, err, ErrServerMissing)
	assert.Empty(t, r.calls)
}

func TestUpdate_DownloaderFailureIsFatal(t *testing.T) {
	u, r, _ := setup(t, Always, true)
	r.err = errors.New("exit status 1")

	err := u.Update(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downloader failed")
}

func TestUpdate_DownloaderProducedNothing(t *testing.T) {
	u, r, _ := setup(t, Missing, false)
	r.create = ""

	require.ErrorIs(t, u.Update(context.Background()), ErrServerMissing)
}

func TestUpdate_NoCommand(t *testing.T) {
	u, _, _ := setup(t, Always, false)
	u.opts.Command = "  "

	require.Error(t, u.Update(context.Background()))
}

func TestExecRunner(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	r := ExecRunner{}
	require.NoError(t, r.Run(context.Background(), []string{"/bin/sh", "-c", `test "$X" = y`}, []string{"X=y"}, t.TempDir()))
	require.Error(t, r.Run(context.Background(), []string{"/bin/sh", "-c", "exit 3"}, nil, ""))
	require.Error(t, r.Run(context.Background(), nil, nil, ""))
}
