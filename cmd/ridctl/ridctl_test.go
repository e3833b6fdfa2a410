package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/RIDBox/config"
	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/integrations/faa/fake"
	"github.com/BearBump/RIDBox/internal/models"
	"github.com/BearBump/RIDBox/internal/services/syncer"
	"github.com/BearBump/RIDBox/internal/storage/sqliteserials"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func testSource() *fake.Source {
	return fake.New().AddRecord(faa.RIDRecord{
		TrackingNumber: "RID000001",
		MakeName:       "Contixo Inc.",
		ModelName:      "F33",
		Status:         "accepted",
		DocType:        "rid",
		UpdatedAt:      t0.Add(-24 * time.Hour).Format(time.RFC3339),
	},
		faa.SerialItem{Value: "2146BF3300000000"},
		faa.SerialItem{Value: "2146BF3300000001", MfrSerial: "MFR1"},
		faa.SerialItem{Value: "1581F5BK000000000000-1581F5BK000000000005"},
	)
}

func testOptions(src *fake.Source) *rootOptions {
	return &rootOptions{
		newSource: func(*config.Config) faa.Source { return src },
		clock:     syncer.NewManualClock(t0),
	}
}

func execute(t *testing.T, opts *rootOptions, args ...string) (string, error) {
	t.Helper()
	t.Setenv("configPath", "")
	buf := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func emptyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rid.db")
	st, err := sqliteserials.Open(context.Background(), path)
	require.NoError(t, err)
	st.Close()
	return path
}

func syncedDB(t *testing.T) string {
	t.Helper()
	db := emptyDB(t)
	_, err := execute(t, testOptions(testSource()), "--db", db, "sync", "--days", "7")
	require.NoError(t, err)
	return db
}

func assertGolden(t *testing.T, name, out string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(out))
}

func TestSync_DryRunThenWrite(t *testing.T) {
	db := emptyDB(t)

	out, err := execute(t, testOptions(testSource()), "--db", db, "sync", "--days", "7", "--dry-run")
	require.NoError(t, err)
	assertGolden(t, "sync_days_dry_run", out)

	out, err = execute(t, testOptions(testSource()), "--db", db, "--format", "json", "stats")
	require.NoError(t, err)
	var st models.StoreStats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Zero(t, st.ExactSerials)
	assert.NotContains(t, st.Metadata, models.MetaLastSyncDate)

	out, err = execute(t, testOptions(testSource()), "--db", db, "sync", "--days", "7")
	require.NoError(t, err)
	assertGolden(t, "sync_days", out)
}

func TestSync_JSONReport(t *testing.T) {
	db := emptyDB(t)
	out, err := execute(t, testOptions(testSource()), "--db", db, "--format", "json", "sync", "--count", "1")
	require.NoError(t, err)

	var rep models.SyncReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.True(t, rep.Completed)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 1, rep.RecordsChecked)
	// лимит достигнут на первой странице, вторую не запрашиваем
	assert.Equal(t, 2, rep.APICalls)
}

func TestLookup_Golden(t *testing.T) {
	db := syncedDB(t)

	out, err := execute(t, testOptions(testSource()), "--db", db, "lookup", "2146BF3300000001")
	require.NoError(t, err)
	assertGolden(t, "lookup_exact", out)

	out, err = execute(t, testOptions(testSource()), "--db", db, "--format", "json", "lookup", "1581F5BK000000000003")
	require.NoError(t, err)
	assertGolden(t, "lookup_range_json", out)

	out, err = execute(t, testOptions(testSource()), "--db", db, "lookup", "UNKNOWN123")
	require.NoError(t, err)
	assertGolden(t, "lookup_not_found", out)
}

func TestLookup_APIFallbackAndWriteBack(t *testing.T) {
	db := syncedDB(t)
	src := testSource().AddMatch("ZZZ0000000000001", faa.SerialMatch{
		TrackingNumber: "RID000009",
		DocType:        "rid",
		Status:         "accepted",
		MakeName:       "Acme",
		ModelName:      "Hawk",
	})

	out, err := execute(t, testOptions(src), "--db", db, "--format", "json", "lookup", "ZZZ0000000000001")
	require.NoError(t, err)
	assert.Contains(t, out, `"found": false`)
	assert.Zero(t, src.FindCalls)

	out, err = execute(t, testOptions(src), "--db", db, "--format", "json", "lookup", "--api", "--add-to-db", "ZZZ0000000000001")
	require.NoError(t, err)
	var res models.LookupResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Found)
	assert.Equal(t, models.SourceAPI, res.Source)
	assert.Equal(t, "Acme", models.Deref(res.Make))

	out, err = execute(t, testOptions(src), "--db", db, "--format", "json", "lookup", "ZZZ0000000000001")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, models.SourceLocal, res.Source)
}

func TestBuild_ThenStats(t *testing.T) {
	db := filepath.Join(t.TempDir(), "fresh.db")

	out, err := execute(t, testOptions(testSource()), "--db", db, "build")
	require.NoError(t, err)
	assertGolden(t, "build", out)

	out, err = execute(t, testOptions(testSource()), "--db", db, "stats")
	require.NoError(t, err)
	assertGolden(t, "stats_after_build", out)
}

func TestSync_SinceLastSyncAfterBuild(t *testing.T) {
	db := filepath.Join(t.TempDir(), "fresh.db")
	_, err := execute(t, testOptions(testSource()), "--db", db, "build")
	require.NoError(t, err)

	out, err := execute(t, testOptions(testSource()), "--db", db, "--format", "json", "sync")
	require.NoError(t, err)
	var rep models.SyncReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Zero(t, rep.RecordsChecked)
	assert.Equal(t, 1, rep.APICalls)
}

func TestExitCodes(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.db")
	db := emptyDB(t)

	cases := []struct {
		name string
		src  *fake.Source
		args []string
		code int
		is   error
	}{
		{"lookup missing store", nil, []string{"--db", missing, "lookup", "X"}, ExitCommandError, models.ErrStoreUnavailable},
		{"sync missing store", nil, []string{"--db", missing, "sync", "--days", "1"}, ExitCommandError, models.ErrStoreUnavailable},
		{"stats missing store", nil, []string{"--db", missing, "stats"}, ExitCommandError, models.ErrStoreUnavailable},
		{"add-to-db without api", nil, []string{"--db", db, "lookup", "--add-to-db", "X"}, ExitCommandError, nil},
		{"exclusive boundaries", nil, []string{"--db", db, "sync", "--days", "7", "--count", "5"}, ExitCommandError, nil},
		{"zero days", nil, []string{"--db", db, "sync", "--days", "0"}, ExitCommandError, models.ErrInvalidArgument},
		{"bad since", nil, []string{"--db", db, "sync", "--since", "yesterday-ish"}, ExitCommandError, models.ErrInvalidArgument},
		{"bad format", nil, []string{"--db", db, "--format", "xml", "stats"}, ExitCommandError, nil},
		{"unknown flag", nil, []string{"--db", db, "lookup", "--nope", "X"}, ExitCommandError, nil},
		{"missing arg", nil, []string{"--db", db, "lookup"}, ExitCommandError, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := tc.src
			if src == nil {
				src = testSource()
			}
			_, err := execute(t, testOptions(src), tc.args...)
			require.Error(t, err)
			assert.Equal(t, tc.code, exitCode(err))
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
	_, err := os.Stat(missing)
	assert.True(t, os.IsNotExist(err), "lookup must not create the database")
}

func TestSync_ListFailureIsFatal(t *testing.T) {
	db := emptyDB(t)
	src := testSource()
	src.ListErr = errors.New("connection reset")

	out, err := execute(t, testOptions(src), "--db", db, "sync", "--days", "7")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, exitCode(err))
	assert.ErrorIs(t, err, models.ErrRemoteUnavailable)
	assert.Contains(t, out, "sync failed")
	assert.Contains(t, out, "api calls:       1")
}

func TestLoadConfig_FileAndDBOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ridbox.yaml")
	dbFromCfg := filepath.Join(dir, "from-config.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  path: \""+dbFromCfg+"\"\nfaa:\n  mode: fake\n"), 0o600))

	opts := testOptions(testSource())
	_, err := execute(t, opts, "--config", cfgPath, "build")
	require.NoError(t, err)
	_, err = os.Stat(dbFromCfg)
	require.NoError(t, err)

	opts.ConfigPath = cfgPath
	opts.DBPath = filepath.Join(dir, "override.db")
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, opts.DBPath, cfg.SQLitePath())
	assert.Equal(t, config.FAAModeFake, cfg.FAA.Mode)

	opts.ConfigPath = filepath.Join(dir, "nope.yaml")
	_, err = opts.loadConfig()
	assert.Equal(t, ExitCommandError, exitCode(err))
}
