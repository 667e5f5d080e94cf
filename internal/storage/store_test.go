package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/ddesim/internal/config"
	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTrajectory() *sim.Trajectory {
	return &sim.Trajectory{
		Times:  []float64{0, 0.5, 1},
		States: []dde.State{{1, 0}, {0.5, -0.25}, {math.NaN(), math.Inf(1)}},
		Stats:  sim.Stats{Accepted: 12, Rejected: 3, Throttled: 1, Iterations: 4, Evaluations: 51, MinPWSFactor: 0.5},
		Failed: true,
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cfg := config.GetPreset("oscillator", "stable")
	id, err := s.Save(ctx, cfg, sampleTrajectory())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "oscillator", run.Model)
	assert.Equal(t, 2, run.Dim)
	assert.Equal(t, 3, run.Samples)
	assert.True(t, run.Failed)
	assert.Equal(t, 12, run.Stats.Accepted)
	assert.Equal(t, 0.5, run.Stats.MinPWSFactor)
	assert.Equal(t, 0.2, run.Config.Params["k"])
	assert.Equal(t, cfg.Integration.RTol, run.Config.Integration.RTol)

	times, states, err := s.Samples(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, times)
	require.Len(t, states, 3)
	assert.Equal(t, dde.State{0.5, -0.25}, states[1])
	assert.True(t, math.IsNaN(states[2][0]))
	assert.True(t, math.IsInf(states[2][1], 1))
}

func TestStore_GetByPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cfg := config.DefaultConfig()

	_, err := s.SaveWithID(ctx, "abc-111", cfg, sampleTrajectory())
	require.NoError(t, err)
	_, err = s.SaveWithID(ctx, "abc-222", cfg, sampleTrajectory())
	require.NoError(t, err)
	_, err = s.SaveWithID(ctx, "abc", cfg, sampleTrajectory())
	require.NoError(t, err)

	run, err := s.Get(ctx, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "abc-222", run.ID)

	run, err = s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", run.ID)

	_, err = s.Get(ctx, "abc-")
	assert.True(t, errors.Is(err, ErrAmbiguousRun))

	_, err = s.Get(ctx, "zzz")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestStore_DuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveWithID(ctx, "run-1", config.DefaultConfig(), sampleTrajectory())
	require.NoError(t, err)
	_, err = s.SaveWithID(ctx, "run-1", config.DefaultConfig(), sampleTrajectory())
	assert.True(t, errors.Is(err, ErrDuplicateRun))
}

func TestStore_ListAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	id, err := s.Save(ctx, config.DefaultConfig(), sampleTrajectory())
	require.NoError(t, err)
	_, err = s.Save(ctx, config.DefaultConfig(), &sim.Trajectory{})
	require.NoError(t, err)

	runs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	times, _, err := s.Samples(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, times)

	assert.True(t, errors.Is(s.Delete(ctx, id), ErrRunNotFound))
}

func TestStore_ReopenKeepsRuns(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	id, err := s.Save(ctx, config.DefaultConfig(), sampleTrajectory())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, id)
	assert.NoError(t, err)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestUpSection(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (x INT);\n", upSection(content))
	assert.Equal(t, "SELECT 1", upSection("SELECT 1"))
}

func TestExportJSON(t *testing.T) {
	tr := sampleTrajectory()
	run := &Run{ID: "r1", Model: "oscillator", Failed: true, Stats: tr.Stats}

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, run, tr.Times, tr.States))

	var decoded struct {
		ID     string       `json:"id"`
		Failed bool         `json:"failed"`
		States [][]*float64 `json:"states"`
		Stats  ExportStats  `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "r1", decoded.ID)
	assert.True(t, decoded.Failed)
	assert.Equal(t, 51, decoded.Stats.Evaluations)
	require.Len(t, decoded.States, 3)
	assert.Equal(t, -0.25, *decoded.States[1][1])
	assert.Nil(t, decoded.States[2][0])
	assert.Nil(t, decoded.States[2][1])
}

func TestExportCSV(t *testing.T) {
	tr := sampleTrajectory()
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, tr.Times, tr.States))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"time,y0,y1", "0,1,0", "0.5,0.5,-0.25", "1,NaN,+Inf"}, lines)
}

func TestExportSVG(t *testing.T) {
	tr := sampleTrajectory()
	var buf bytes.Buffer
	require.NoError(t, ExportSVG(&buf, tr.Times, tr.States, 200, 100))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Equal(t, 2, strings.Count(out, "<path"))
	// y0=1 at t=0 sits near the top after padding
	assert.Contains(t, out, `d="M0.0,8.3 L100.0,`)
	assert.True(t, strings.HasSuffix(out, "</svg>\n"))

	assert.Error(t, ExportSVG(&buf, tr.Times[:1], tr.States[:1], 200, 100))
	nan := []dde.State{{math.NaN()}, {math.NaN()}}
	assert.Error(t, ExportSVG(&buf, []float64{0, 1}, nan, 200, 100))
}
