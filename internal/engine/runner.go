package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/extraction"
	"github.com/datallboy/gorom/internal/infra/logger"
	"github.com/datallboy/gorom/internal/storage"
	"github.com/datallboy/gorom/internal/transfer"
	"github.com/dustin/go-humanize"
)

// Ledger records completed downloads and finished sessions.
type Ledger interface {
	RecordDownload(ctx context.Context, rec domain.DownloadRecord) error
	RecordSession(ctx context.Context, rec domain.SessionRecord) error
}

// unknownTotalStep is how often progress is forwarded when the size is unknown.
const unknownTotalStep = 1 << 20

// Runner executes one job. It is the scheduler spec for that job.
type Runner struct {
	jobID   string
	coord   *Coordinator
	variant Variant
	deps    *runnerDeps
}

// runnerDeps is what every runner of an engine shares.
type runnerDeps struct {
	prov         *storage.Provisioner
	content      Content
	extractor    extraction.Extractor
	ledger       Ledger
	chunkSize    int
	progressStep int
	log          *logger.Logger
}

// OnDiscard runs when the job was cancelled before it started: Queued -> Cancelled.
func (r *Runner) OnDiscard() {
	err := fmt.Errorf("job %s cancelled before start: %w", r.jobID, domain.ErrCancelled)
	if terr := r.coord.Fail(r.jobID, err); terr != nil {
		r.deps.log.Debug("Discard of %s ignored: %v", r.jobID, terr)
	}
}

func (r *Runner) Run(ctx context.Context) error {
	if err := r.coord.ReportTransition(r.jobID, domain.StateRunning); err != nil {
		return err
	}

	job, _ := r.coord.Job(r.jobID)
	err := r.execute(ctx, job)
	if err != nil && ctx.Err() != nil && domain.Classify(err) != domain.FailureCancelled {
		err = fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	if err != nil {
		switch domain.Classify(err) {
		case domain.FailureCancelled:
			r.deps.log.Info("Cancelled %s", job.DisplayName)
		default:
			r.deps.log.Error("Download of %s failed: %v", job.DisplayName, err)
		}
		if terr := r.coord.Fail(r.jobID, err); terr != nil {
			r.deps.log.Warn("Could not record failure of %s: %v", r.jobID, terr)
		}
		return err
	}

	return r.coord.ReportTransition(r.jobID, domain.StateSucceeded)
}

func (r *Runner) execute(ctx context.Context, job domain.Job) (err error) {
	d := r.deps

	plan, err := r.variant.Resolve(ctx, job.Item)
	if err != nil {
		return err
	}

	base := job.Destination.Base
	r.coord.Describe(r.jobID, plan.DisplayName, domain.Destination{
		Base:      base,
		Directory: joinDir(plan.Directory, plan.SubDirectory),
		FileName:  plan.FileName,
	})

	dir, err := d.prov.Acquire(base, plan.Directory)
	if err != nil {
		return err
	}

	// Anything created below target is ours to remove on failure.
	target := dir
	var cleanup []storage.Node
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			if derr := d.prov.Docs().Delete(cleanup[i]); derr != nil {
				d.log.Warn("Cleanup of %s failed: %v", cleanup[i].Path, derr)
			}
		}
	}()

	if plan.SubDirectory != "" {
		if target, err = d.prov.Recreate(dir, plan.SubDirectory); err != nil {
			return err
		}
		cleanup = append(cleanup, target)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("before transfer: %w", domain.ErrCancelled)
	}

	body, size, err := d.content.OpenContent(ctx, plan.Source)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := d.prov.CreateOrReplaceFile(target, plan.FileName)
	if err != nil {
		return err
	}
	if plan.SubDirectory == "" {
		cleanup = append(cleanup, out)
	}

	w, err := d.prov.Docs().OpenOutputStream(out)
	if err != nil {
		return err
	}

	d.log.Info("Downloading %s (%s) to %s", plan.DisplayName, sizeLabel(size), out.Path)

	throttle := newThrottle(d.progressStep)
	written, err := transfer.Copy(ctx, body, w, size, d.chunkSize, func(p domain.TransferProgress) {
		if throttle.due(p) {
			r.coord.ReportProgress(r.jobID, p)
		}
	})
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w: %w", out.Path, domain.ErrStorage, cerr)
	}
	if err != nil {
		return err
	}

	final := domain.TransferProgress{Transferred: written, Total: size}
	if !final.Known() {
		final.Total = written
	}
	r.coord.ReportProgress(r.jobID, final)

	if plan.Expand {
		ok, cerr := d.extractor.CanExtract(out)
		if cerr != nil {
			return fmt.Errorf("inspect %s: %w: %w", out.Path, domain.ErrStorage, cerr)
		}
		if !ok {
			return fmt.Errorf("%s is not a %s archive: %w", out.Path, d.extractor.Name(), domain.ErrArchiveCorrupt)
		}
		n, xerr := d.extractor.Expand(ctx, out, target)
		if xerr != nil {
			return xerr
		}
		if derr := d.prov.Docs().Delete(out); derr != nil {
			d.log.Warn("Could not remove archive %s: %v", out.Path, derr)
		}
		d.log.Debug("Expanded %d files for %s", n, plan.DisplayName)
	}

	if d.ledger != nil {
		rec := domain.DownloadRecord{
			JobID:       r.jobID,
			SessionID:   job.SessionID,
			Kind:        job.Kind,
			ItemID:      job.Item.ID,
			Name:        plan.DisplayName,
			Platform:    plan.Platform,
			Path:        target.Path,
			Bytes:       written,
			CompletedAt: time.Now(),
		}
		if !plan.Expand {
			rec.Path = out.Path
		}
		// The file is on disk; a ledger hiccup must not fail the download
		if lerr := d.ledger.RecordDownload(context.WithoutCancel(ctx), rec); lerr != nil {
			d.log.Warn("Could not record %s in download history: %v", plan.DisplayName, lerr)
		}
	}

	d.log.Info("Finished %s (%s)", plan.DisplayName, humanize.IBytes(uint64(written)))
	return nil
}

// throttle decides which chunk callbacks become coordinator progress reports.
type throttle struct {
	step     int
	lastPct  int
	lastSent int64
}

func newThrottle(step int) *throttle {
	if step <= 0 {
		step = 5
	}
	return &throttle{step: step, lastPct: -1}
}

func (t *throttle) due(p domain.TransferProgress) bool {
	if !p.Known() {
		if p.Transferred-t.lastSent >= unknownTotalStep {
			t.lastSent = p.Transferred
			return true
		}
		return false
	}

	pct := p.Percent()
	if t.lastPct < 0 || pct >= t.lastPct+t.step || (pct == 100 && t.lastPct != 100) {
		t.lastPct = pct
		return true
	}
	return false
}

func sizeLabel(n int64) string {
	if n < 0 {
		return "unknown size"
	}
	return humanize.IBytes(uint64(n))
}

func joinDir(dir, sub string) string {
	if sub == "" {
		return dir
	}
	return dir + "/" + sub
}
