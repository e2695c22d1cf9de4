// Package install executes plans against the plugin directory and keeps
// the persisted state file in sync with what is actually on disk.
//
// Each action moves through a small state machine (pending, fetching,
// verifying, writing, committed) and failures stay isolated to their own
// action: one bad download never blocks a sibling install. Downloads run
// concurrently with a bounded worker count; state file writes are
// serialized behind a mutex, and both artifacts and the state file land
// via temp-file-then-rename so a crash never leaves a torn file.
package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dropper-mc/dropper/pkg/errors"
	"github.com/dropper-mc/dropper/pkg/httputil"
	"github.com/dropper-mc/dropper/pkg/plan"
)

// DefaultConcurrency bounds simultaneous downloads.
const DefaultConcurrency = 4

// Status tracks an action through the install state machine.
type Status int

const (
	StatusPending Status = iota
	StatusFetching
	StatusVerifying
	StatusWriting
	StatusCommitted
	StatusUnchanged
	StatusFailed
)

var statusNames = map[Status]string{
	StatusPending:   "pending",
	StatusFetching:  "fetching",
	StatusVerifying: "verifying",
	StatusWriting:   "writing",
	StatusCommitted: "committed",
	StatusUnchanged: "unchanged",
	StatusFailed:    "failed",
}

func (s Status) String() string { return statusNames[s] }

// ActionResult is the terminal outcome of one plan action.
type ActionResult struct {
	Action   plan.Action
	Status   Status
	Warnings []string
	Err      error
}

// Summary aggregates the outcome of one Apply run.
type Summary struct {
	RunID    string
	Results  []ActionResult
	Duration time.Duration
}

// Failures returns the results that ended in StatusFailed.
func (s *Summary) Failures() []ActionResult {
	var out []ActionResult
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// HasFailures reports whether any action failed.
func (s *Summary) HasFailures() bool { return len(s.Failures()) > 0 }

// Changed counts actions that committed a real change.
func (s *Summary) Changed() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == StatusCommitted {
			n++
		}
	}
	return n
}

// Installer applies plans to a plugin directory.
type Installer struct {
	fetcher     httputil.Fetcher
	store       *StateStore
	pluginDir   string
	concurrency int
	logger      *log.Logger
}

// New creates an Installer. concurrency <= 0 means DefaultConcurrency; a
// nil logger disables logging.
func New(fetcher httputil.Fetcher, store *StateStore, pluginDir string, concurrency int, logger *log.Logger) *Installer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Installer{
		fetcher:     fetcher,
		store:       store,
		pluginDir:   pluginDir,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Apply executes the plan in two phases. Downloads and verification run
// concurrently up to the worker bound; writes and state commits then run
// serially in plan order, so a dependent never lands on disk before its
// dependency and removals always come last. Apply returns the summary
// together with ctx's error when the run was cut short; actions not yet
// started stay StatusPending in the summary.
func (ins *Installer) Apply(ctx context.Context, p *plan.Plan) (*Summary, error) {
	start := time.Now()

	st, err := ins.store.Load()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(ins.pluginDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeWrite, err, "create plugin directory %s", ins.pluginDir)
	}
	st.LastRunID = uuid.NewString()

	results := make([]ActionResult, len(p.Actions))
	for i, a := range p.Actions {
		results[i] = ActionResult{Action: a, Status: StatusPending}
	}

	staged := make([]stagedFetch, len(p.Actions))
	var g errgroup.Group
	g.SetLimit(ins.concurrency)
	for i, a := range p.Actions {
		switch a.Op {
		case plan.OpNoop, plan.OpRemove:
			// Nothing to download.
		default:
			g.Go(func() error {
				staged[i] = ins.fetchAction(ctx, a)
				return nil
			})
		}
	}
	g.Wait()

	for i, a := range p.Actions {
		switch a.Op {
		case plan.OpNoop:
			results[i].Status = StatusUnchanged
		case plan.OpRemove:
			results[i] = ins.applyRemove(ctx, st, a)
		default:
			s := staged[i]
			if s.res.Status == StatusFailed || s.res.Err != nil {
				results[i] = s.res
				continue
			}
			results[i] = ins.commitFetched(ctx, st, a, s)
		}
	}

	summary := &Summary{RunID: st.LastRunID, Results: results, Duration: time.Since(start)}
	return summary, ctx.Err()
}

// stagedFetch carries one action's verified payload from the concurrent
// download phase to the serial commit phase.
type stagedFetch struct {
	res  ActionResult
	data []byte
	ver  *verification
}

// fetchAction downloads and verifies one action's artifact without touching
// the plugin directory or the state file. Cancellation is honored only at
// the action boundary: an action that started fetching runs to completion
// or failure.
func (ins *Installer) fetchAction(ctx context.Context, a plan.Action) stagedFetch {
	res := ActionResult{Action: a, Status: StatusPending}
	if ctx.Err() != nil {
		res.Err = ctx.Err()
		return stagedFetch{res: res}
	}

	ins.logger.Debug("fetching artifact", "plugin", a.Name, "version", a.To.String(), "url", a.Listing.DownloadURL)
	res.Status = StatusFetching
	data, err := ins.fetcher.Fetch(ctx, a.Listing.DownloadURL)
	if err != nil {
		return stagedFetch{res: failed(res, errors.Wrap(errors.ErrCodeFetch, err, "download %s %s", a.Name, a.To))}
	}

	res.Status = StatusVerifying
	ver, err := verifyArtifact(a.Listing, data)
	if err != nil {
		return stagedFetch{res: failed(res, err)}
	}
	res.Warnings = ver.Warnings
	for _, w := range ver.Warnings {
		ins.logger.Warn(w, "plugin", a.Name, "version", a.To.String())
	}

	return stagedFetch{res: res, data: data, ver: ver}
}

// commitFetched writes a staged artifact into the plugin directory and
// records it in the state file.
func (ins *Installer) commitFetched(ctx context.Context, st *State, a plan.Action, s stagedFetch) ActionResult {
	res := s.res
	if ctx.Err() != nil {
		res.Err = ctx.Err()
		return res
	}

	res.Status = StatusWriting
	fileName := a.Name + ".jar"
	if err := writeArtifact(filepath.Join(ins.pluginDir, fileName), s.data); err != nil {
		return failed(res, errors.Wrap(errors.ErrCodeWrite, err, "write %s", fileName))
	}

	rec := Record{
		Name:        a.Name,
		Version:     a.To,
		SourceID:    a.Listing.SourceID,
		FileName:    fileName,
		Fingerprint: s.ver.Fingerprint,
		InstalledAt: time.Now().UTC(),
	}
	if err := ins.commit(st, func(st *State) {
		if old, ok := st.Plugins[a.Name]; ok && old.FileName != "" && old.FileName != fileName {
			os.Remove(filepath.Join(ins.pluginDir, old.FileName))
		}
		st.Plugins[a.Name] = rec
	}); err != nil {
		return failed(res, errors.Wrap(errors.ErrCodeWrite, err, "record %s in state", a.Name))
	}

	ins.logger.Info(a.Op.String(), "plugin", a.Name, "version", a.To.String(), "source", a.Listing.SourceID)
	res.Status = StatusCommitted
	return res
}

func (ins *Installer) applyRemove(ctx context.Context, st *State, a plan.Action) ActionResult {
	res := ActionResult{Action: a, Status: StatusPending}
	if ctx.Err() != nil {
		res.Err = ctx.Err()
		return res
	}

	res.Status = StatusWriting
	fileName := a.Name + ".jar"
	if rec, ok := st.Plugins[a.Name]; ok && rec.FileName != "" {
		fileName = rec.FileName
	}
	if err := os.Remove(filepath.Join(ins.pluginDir, fileName)); err != nil && !os.IsNotExist(err) {
		return failed(res, errors.Wrap(errors.ErrCodeWrite, err, "remove %s", fileName))
	}

	if err := ins.commit(st, func(st *State) {
		delete(st.Plugins, a.Name)
	}); err != nil {
		return failed(res, errors.Wrap(errors.ErrCodeWrite, err, "record removal of %s in state", a.Name))
	}

	ins.logger.Info("remove", "plugin", a.Name, "version", a.From.String())
	res.Status = StatusCommitted
	return res
}

// commit applies a state mutation and persists it. The store runs the
// mutation and the write in one critical section, so a concurrent sibling
// never persists a half-applied mutation.
func (ins *Installer) commit(st *State, mutate func(*State)) error {
	return ins.store.Update(st, mutate)
}

func failed(res ActionResult, err error) ActionResult {
	res.Status = StatusFailed
	res.Err = err
	return res
}

// writeArtifact lands data at path via a temp file in the same directory,
// so a partially downloaded jar is never visible under its final name.
func writeArtifact(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dropper-*.jar.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}
