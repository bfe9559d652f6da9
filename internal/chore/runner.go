package chore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/recurrence"
	"github.com/dukerupert/chorely/internal/store"
)

// RunnerConfig tunes the recurrence runner.
type RunnerConfig struct {
	Interval    time.Duration // time between runs
	HorizonDays int           // generate occurrences up to today + HorizonDays
	Workers     int           // series processed in parallel
}

// Runner turns active recurrence series into dated instances and assignments.
type Runner struct {
	mu     sync.RWMutex
	db     *sql.DB
	events notify.Emitter
	logger *slog.Logger
	cfg    RunnerConfig
	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// RunResult summarizes one pass over all active series.
type RunResult struct {
	Series    int `json:"series"`
	Generated int `json:"generated"`
	Flagged   int `json:"flagged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

var errWatermarkMoved = errors.New("watermark moved")

func NewRunner(db *sql.DB, events notify.Emitter, logger *slog.Logger, cfg RunnerConfig) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.HorizonDays < 0 {
		cfg.HorizonDays = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if events == nil {
		events = notify.Nop
	}
	return &Runner{
		db:     db,
		events: events,
		logger: logger.With("component", "recurrence_runner"),
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start runs once immediately and then on every interval until Stop.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		r.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (r *Runner) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	done := r.done
	r.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (r *Runner) tick(ctx context.Context) {
	res, err := r.RunOnce(ctx, r.now())
	if err != nil {
		r.logger.Error("recurrence run failed", "error", err)
		return
	}
	if res.Generated > 0 || res.Flagged > 0 || res.Failed > 0 {
		r.logger.Info("recurrence run",
			"series", res.Series, "generated", res.Generated,
			"flagged", res.Flagged, "skipped", res.Skipped, "failed", res.Failed)
	}
}

// RunOnce generates every occurrence in (watermark, today+horizon] for each
// active series. Running it again with the same now generates nothing.
func (r *Runner) RunOnce(ctx context.Context, now time.Time) (RunResult, error) {
	series, err := store.NewRecurrenceStore(r.db).ListActive(ctx)
	if err != nil {
		return RunResult{}, err
	}
	horizon := recurrence.Day(now).AddDate(0, 0, r.cfg.HorizonDays)

	var mu sync.Mutex
	res := RunResult{Series: len(series)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, sr := range series {
		g.Go(func() error {
			n, flagged, err := r.generate(gctx, sr, horizon)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, errWatermarkMoved):
				res.Skipped++
			case err != nil:
				res.Failed++
				r.logger.Error("generate series", "recurrence_id", sr.ID, "tenant_id", sr.TenantID, "error", err)
			case flagged:
				res.Flagged++
			default:
				res.Generated += n
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, ctx.Err()
}

// generate materializes one series. The watermark compare-and-swap runs first
// in the same transaction, so a concurrent run over the same series either
// commits everything or nothing.
func (r *Runner) generate(ctx context.Context, sr model.ChoreRecurrence, horizon time.Time) (int, bool, error) {
	watermark, err := recurrence.ParseDate(sr.LastGeneratedDate)
	if err != nil {
		return 0, false, err
	}
	if !horizon.After(watermark) {
		return 0, false, nil
	}

	dates, err := recurrence.Dates(sr.Pattern, watermark.AddDate(0, 0, 1), horizon)
	if err != nil {
		return 0, true, r.flag(ctx, sr, "invalid pattern", err)
	}
	if len(dates) == 0 {
		return 0, false, nil
	}

	var created []*model.ChoreAssignment
	inactive := false
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		st := store.New(tx)

		tmpl, err := st.Templates.GetByID(ctx, sr.TenantID, sr.TemplateID)
		if err != nil {
			return err
		}
		if tmpl == nil || !tmpl.Active {
			inactive = true
			return st.Recurrences.FlagAttention(ctx, sr.ID)
		}

		last := dates[len(dates)-1].Format(recurrence.DateLayout)
		ok, err := st.Recurrences.AdvanceWatermark(ctx, sr.ID, sr.LastGeneratedDate, last)
		if err != nil {
			return err
		}
		if !ok {
			return errWatermarkMoved
		}

		f := &Factory{st: st}
		for _, d := range dates {
			inst, err := f.FromTemplate(ctx, sr.TenantID, sr.TemplateID, sr.AssignerID)
			if err != nil {
				return err
			}
			occurrence := d.Format(recurrence.DateLayout)
			a, err := st.Assignments.Create(ctx, model.ChoreAssignment{
				TenantID:       sr.TenantID,
				InstanceID:     inst.ID,
				AssigneeID:     sr.AssigneeID,
				AssignerID:     sr.AssignerID,
				RecurrenceID:   &sr.ID,
				OccurrenceDate: &occurrence,
				DueAt:          endOfDay(d),
				Priority:       sr.Priority,
			})
			if err != nil {
				return err
			}
			created = append(created, a)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	if inactive {
		r.logger.Warn("series template inactive, flagged for attention", "recurrence_id", sr.ID, "template_id", sr.TemplateID)
		return 0, true, nil
	}

	at := r.now()
	for _, a := range created {
		r.events.Emit(ctx, notify.Event{
			Name: notify.AssignmentCreated, TenantID: a.TenantID, MemberID: a.AssigneeID,
			EntityID: a.ID, Payload: a, OccurredAt: at,
		})
	}
	r.events.Emit(ctx, notify.Event{
		Name: notify.RecurrenceGenerated, TenantID: sr.TenantID, MemberID: sr.AssigneeID, EntityID: sr.ID,
		Payload: map[string]any{"generated": len(created), "last_generated_date": dates[len(dates)-1].Format(recurrence.DateLayout)},
		OccurredAt: at,
	})
	return len(created), false, nil
}

func (r *Runner) flag(ctx context.Context, sr model.ChoreRecurrence, reason string, cause error) error {
	r.logger.Warn("series flagged for attention", "recurrence_id", sr.ID, "reason", reason, "error", cause)
	return store.NewRecurrenceStore(r.db).FlagAttention(ctx, sr.ID)
}
