package client

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/famomatic/loomdl/internal/ledger"
	"github.com/famomatic/loomdl/internal/platform/metrics"
	"github.com/famomatic/loomdl/internal/types"
)

// BatchOptions controls RunBatch.
type BatchOptions struct {
	// Download applies to every task. OutputPath and Index are ignored.
	Download DownloadOptions

	// Concurrency overrides Config.Concurrency when positive.
	Concurrency int

	// Pacing overrides Config.Pacing when positive. A negative value
	// disables pacing for this run.
	Pacing time.Duration

	// LedgerPath overrides Config.LedgerPath.
	LedgerPath string
}

// TaskFailure records one failed reference.
type TaskFailure struct {
	Ref   string
	ID    AssetID
	Index int
	Err   error
}

// BatchSummary reports the outcome of a RunBatch call. Total counts
// non-blank input references; Skipped counts those already in the ledger
// and repeated identifiers.
type BatchSummary struct {
	RunID     string
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
	Failures  []TaskFailure
}

type batchTask struct {
	ref   string
	id    types.AssetID
	index int
}

// RunBatch downloads every reference not yet recorded in the completion
// ledger, with at most Concurrency tasks in flight. Task failures are
// recorded in the summary and never stop sibling tasks. Each success is
// appended to the ledger, so a repeated run only retries what failed.
func (c *Client) RunBatch(ctx context.Context, refs []string, opts BatchOptions) (*BatchSummary, error) {
	if c == nil {
		return nil, errors.New("client: nil client")
	}
	summary := &BatchSummary{RunID: uuid.NewString()}
	log := c.logger.With("run_id", summary.RunID)

	ledgerPath := opts.LedgerPath
	if ledgerPath == "" {
		ledgerPath = c.config.ledgerPath()
	}
	done, err := ledger.Open(ledgerPath, ExtractID)
	if err != nil {
		log.Warn("ledger unreadable, continuing with an empty ledger", "path", ledgerPath, "error", err)
	}

	tasks := c.planBatch(refs, done, summary)
	log.Info("batch started",
		"total", summary.Total,
		"skipped", summary.Skipped,
		"pending", len(tasks),
		"ledger", ledgerPath,
	)

	limit := opts.Concurrency
	if limit < 1 {
		limit = c.config.concurrency()
	}
	pacing := opts.Pacing
	switch {
	case pacing < 0:
		pacing = 0
	case pacing == 0:
		pacing = c.config.pacing()
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			err := c.runBatchTask(ctx, summary.RunID, task, opts.Download, done)

			mu.Lock()
			if err != nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, TaskFailure{Ref: task.ref, ID: task.id, Index: task.index, Err: err})
			} else {
				summary.Succeeded++
			}
			mu.Unlock()

			if err == nil && pacing > 0 {
				_ = sleepContext(ctx, pacing)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Index < summary.Failures[j].Index
	})
	log.Info("batch finished",
		"total", summary.Total,
		"skipped", summary.Skipped,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, nil
}

// planBatch drops blank, already completed and repeated references. Index is
// the 1-based position among non-blank references, so names stay stable
// across reruns of the same list.
func (c *Client) planBatch(refs []string, done *ledger.Ledger, summary *BatchSummary) []batchTask {
	var tasks []batchTask
	seen := make(map[types.AssetID]bool, len(refs))
	for _, raw := range refs {
		ref := strings.TrimSpace(raw)
		if ref == "" {
			continue
		}
		summary.Total++
		task := batchTask{ref: ref, id: types.AssetID(ExtractID(ref)), index: summary.Total}

		var reason string
		switch {
		case done.Contains(ref):
			reason = "already downloaded"
		case seen[task.id]:
			reason = "duplicate"
		}
		seen[task.id] = true
		if reason != "" {
			summary.Skipped++
			c.metrics.IncTasks(metrics.ResultSkipped)
			c.emitEvent("batch", "skip", task.id, "", reason)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func (c *Client) runBatchTask(ctx context.Context, runID string, task batchTask, opts DownloadOptions, done *ledger.Ledger) error {
	log := c.taskLogger(runID, task.ref, task.id)
	c.metrics.TaskStarted()
	defer c.metrics.TaskFinished()

	if err := ctx.Err(); err != nil {
		c.metrics.IncTasks(metrics.ResultFailed)
		return err
	}

	opts.OutputPath = ""
	opts.Index = task.index
	result, err := c.runTask(ctx, task.ref, opts)
	if err == nil {
		if appendErr := done.Append(task.ref); appendErr != nil {
			log.Error("ledger append failed, asset is on disk but will be fetched again", "error", appendErr)
			err = appendErr
		}
	}
	if err != nil {
		c.metrics.IncTasks(metrics.ResultFailed)
		log.Error("task failed", "category", ClassifyError(err), "error", err)
		c.emitEvent("batch", "failure", task.id, "", err.Error())
		return err
	}

	c.metrics.IncTasks(metrics.ResultSucceeded)
	log.Info("task complete", "path", result.OutputPath, "artifacts", len(result.Artifacts))
	c.emitEvent("batch", "complete", task.id, result.OutputPath, "")
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
