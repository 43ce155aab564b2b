package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/skill-gap-wizard/internal/extraction"
	"github.com/jonathan/skill-gap-wizard/internal/persistence"
	"github.com/jonathan/skill-gap-wizard/internal/requirements"
	"github.com/jonathan/skill-gap-wizard/internal/upload"
)

// Options configures a Controller.
type Options struct {
	Flow             Flow
	ExitPolicy       ExitPolicy
	AutoAdvanceDelay time.Duration

	// Bridge mirrors selections and upload artifacts to durable storage. Optional.
	Bridge *persistence.Bridge
	Logger *zap.Logger

	// OnExit is the host collaborator invoked when retreating from step 1.
	OnExit func()
	// Observer receives events after each state change, outside the controller lock.
	Observer func(Event)
	// Now is the clock used for timestamps.
	Now func() time.Time
}

// State is a point-in-time copy of the wizard state.
type State struct {
	CurrentStep  int                        `json:"current_step"`
	Total        int                        `json:"total"`
	Step         StepID                     `json:"step"`
	Flow         string                     `json:"flow"`
	Selections   Selections                 `json:"selections"`
	Uploads      upload.Artifacts           `json:"uploads"`
	Requirements *requirements.Requirements `json:"requirements,omitempty"`
	BranchFixed  bool                       `json:"branch_fixed"`
}

// Controller owns the state of one mounted wizard. All methods are safe for
// concurrent use; auto-advance timers fire on their own goroutines.
type Controller struct {
	mu sync.Mutex

	seq          *Sequencer
	selections   SelectionStore
	uploads      upload.Artifacts
	requirements *requirements.Requirements
	branchFixed  bool
	lastStep     StepID
	closed       bool

	scheduler *Scheduler
	bridge    *persistence.Bridge
	logger    *zap.Logger
	onExit    func()
	observer  func(Event)
	now       func() time.Time

	// ctx scopes persistence writes and is cancelled on Close.
	ctx    context.Context
	cancel context.CancelFunc
	outbox []Event
}

// NewController mounts a fresh wizard at step 1 with empty selections.
func NewController(opts Options) *Controller {
	if opts.Flow.Len() == 0 {
		opts.Flow = StandardFlow
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		uploads:   upload.Empty(),
		scheduler: NewScheduler(opts.AutoAdvanceDelay),
		bridge:    opts.Bridge,
		logger:    opts.Logger.With(zap.String("flow", opts.Flow.Name)),
		onExit:    opts.OnExit,
		observer:  opts.Observer,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	c.seq = NewSequencer(opts.Flow, opts.ExitPolicy, c.queueScrollTop, c.queueExit)
	c.lastStep = c.resolveLocked()
	return c
}

// Close unmounts the controller. Pending auto-advances are cancelled and
// later callbacks return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.scheduler.Close()
	c.cancel()
	c.outbox = nil
	c.mu.Unlock()
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		CurrentStep:  c.seq.Current(),
		Total:        c.seq.Total(),
		Step:         c.resolveLocked(),
		Flow:         c.seq.Flow().Name,
		Selections:   c.selections.Snapshot(),
		Uploads:      c.uploads,
		Requirements: c.requirements,
		BranchFixed:  c.branchFixed,
	}
}

// Render resolves the current screen. An unresolvable step is logged and
// rendered as the empty fallback screen.
func (c *Controller) Render() Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	screen := Render(c.seq.Flow(), c.viewLocked())
	if screen.Step == StepNone {
		c.logger.Error("no screen for current step",
			zap.Int("index", c.seq.Current()),
			zap.String("requirement_choice", string(c.selections.Snapshot().RequirementChoice)))
	}
	return screen
}

// -----------------------------------------------------------------------------
// Navigation
// -----------------------------------------------------------------------------

// OnNext advances one step.
func (c *Controller) OnNext() error {
	return c.mutate(func() error {
		c.afterMoveLocked(c.seq.Advance())
		return nil
	})
}

// OnBack retreats one step, or exits the wizard from step 1 depending on the
// exit policy.
func (c *Controller) OnBack() error {
	return c.mutate(func() error {
		c.afterMoveLocked(c.seq.Retreat())
		return nil
	})
}

// JumpTo sets the current step directly.
func (c *Controller) JumpTo(index int) error {
	return c.mutate(func() error {
		c.afterMoveLocked(c.seq.JumpTo(index))
		return nil
	})
}

// JumpToReport moves straight to the flow's report generation step.
func (c *Controller) JumpToReport() error {
	idx := c.seq.Flow().IndexOf(StepReportGeneration)
	if idx == 0 {
		return fmt.Errorf("flow %s has no report step", c.seq.Flow().Name)
	}
	return c.JumpTo(idx)
}

// -----------------------------------------------------------------------------
// Selections
// -----------------------------------------------------------------------------

// OnSelectObjective records the objective. On the objective screen, an
// objective that unlocks the flow schedules an auto-advance.
func (c *Controller) OnSelectObjective(tag string) (Selections, error) {
	var sel Selections
	err := c.mutate(func() error {
		sel = c.selections.SetObjective(tag)
		if ObjectiveUnlocksFlow(tag) && c.resolveLocked() == StepSelectObjective {
			c.scheduleAdvanceLocked(TransitionObjective)
		} else {
			c.scheduler.Cancel(TransitionObjective)
		}
		return nil
	})
	return sel, err
}

// OnSelectRole records the target role and persists it. On the role screen,
// when a requirement choice is already recorded the wizard auto-advances.
func (c *Controller) OnSelectRole(id, title string) (Selections, error) {
	var sel Selections
	err := c.mutate(func() error {
		sel = c.selections.SetTargetRole(id, title)
		c.persistLocked(persistence.KeySelectedRoleID, id)
		c.persistLocked(persistence.KeySelectedRoleName, title)
		if sel.RequirementChoice.Valid() && c.resolveLocked() == StepTargetRole {
			c.scheduleAdvanceLocked(TransitionRole)
		}
		return nil
	})
	return sel, err
}

// OnSelectRequirementChoice records whether requirements are uploaded or
// defined. Once the branch step has been entered the choice cannot change.
func (c *Controller) OnSelectRequirementChoice(choice RequirementChoice) (Selections, error) {
	var sel Selections
	err := c.mutate(func() error {
		if !choice.Valid() {
			return ErrInvalidChoice
		}
		current := c.selections.Snapshot()
		if c.branchFixed && current.RequirementChoice != choice {
			return ErrBranchLocked
		}
		sel = c.selections.SetRequirementChoice(choice)
		c.persistLocked(persistence.KeyRequirementsSource, requirementsSource(choice))
		c.fixBranchLocked()
		if sel.TargetRole != nil && c.resolveLocked() == StepTargetRole {
			c.scheduleAdvanceLocked(TransitionRole)
		}
		return nil
	})
	return sel, err
}

// OnSelectScenario records the benchmark scenario. On the benchmark screen it
// schedules an auto-advance.
func (c *Controller) OnSelectScenario(tag string) (Selections, error) {
	var sel Selections
	err := c.mutate(func() error {
		sel = c.selections.SetBenchmarkScenario(tag)
		if c.resolveLocked() == StepBenchmarkScenario {
			c.scheduleAdvanceLocked(TransitionScenario)
		}
		return nil
	})
	return sel, err
}

// StoreRequirements keeps generated requirements for later screens and persists them.
func (c *Controller) StoreRequirements(reqs *requirements.Requirements) error {
	return c.mutate(func() error {
		c.requirements = reqs
		c.persistLocked(persistence.KeyGeneratedReqs, reqs)
		return nil
	})
}

// -----------------------------------------------------------------------------
// Uploads
// -----------------------------------------------------------------------------

// AddFiles appends a batch of files with pending extraction results and
// returns the metadata with assigned IDs.
func (c *Controller) AddFiles(files ...upload.FileMeta) ([]upload.FileMeta, error) {
	var added []upload.FileMeta
	err := c.mutate(func() error {
		for i := range files {
			if files[i].ID == uuid.Nil {
				files[i].ID = uuid.New()
			}
		}
		c.uploads = c.uploads.Append(files...)
		added = append(added, files...)
		c.persistUploadsLocked()
		c.persistLocked(persistence.KeyProcessingComplete, false)
		c.queueUploadLocked(EventUploadProgress)
		return nil
	})
	return added, err
}

// ApplyExtraction stores the result for a file. Results for files that are
// no longer in the batch are ignored and reported as false.
func (c *Controller) ApplyExtraction(fileID uuid.UUID, result upload.Extraction) (bool, error) {
	applied := false
	err := c.mutate(func() error {
		next, ok := c.uploads.Resolve(fileID, result)
		if !ok {
			c.logger.Debug("ignoring stale extraction result", zap.String("file_id", fileID.String()))
			return nil
		}
		c.uploads = next
		applied = true
		c.persistUploadsLocked()
		c.queueUploadLocked(EventUploadProgress)
		return nil
	})
	return applied, err
}

// RemoveFile drops the file at index and its extraction result.
func (c *Controller) RemoveFile(index int) (upload.FileMeta, error) {
	var removed upload.FileMeta
	err := c.mutate(func() error {
		next, meta, err := c.uploads.Remove(index)
		if err != nil {
			return err
		}
		c.uploads = next
		removed = meta
		c.persistUploadsLocked()
		c.queueUploadLocked(EventUploadProgress)
		return nil
	})
	return removed, err
}

// SelectFile points the selection at index. upload.NoSelection clears it.
func (c *Controller) SelectFile(index int) error {
	return c.mutate(func() error {
		next, err := c.uploads.Select(index)
		if err != nil {
			return err
		}
		c.uploads = next
		c.persistLocked(persistence.KeySelectedFileIndex, next.Selected)
		return nil
	})
}

// OnUploadComplete marks processing as finished once no file is pending. The
// auto-advance is only scheduled while an upload screen is showing; a batch
// that completes after the user has moved on leaves the step alone.
func (c *Controller) OnUploadComplete() error {
	return c.mutate(func() error {
		if c.uploads.Processing() {
			return nil
		}
		c.persistLocked(persistence.KeyProcessingComplete, true)
		c.persistLocked(persistence.KeyProcessingCompletedAt, c.now().UTC().Format(time.RFC3339))
		c.queueUploadLocked(EventUploadComplete)
		if isUploadStep(c.resolveLocked()) {
			c.scheduleAdvanceLocked(TransitionUploadComplete)
		}
		return nil
	})
}

func isUploadStep(step StepID) bool {
	return step == StepUploadResumes || step == StepUploadRequirement
}

// ProcessBatch appends files and extracts them one at a time. It returns the
// upload state after the batch.
func (c *Controller) ProcessBatch(ctx context.Context, ex extraction.Extractor, files []extraction.File) (upload.Artifacts, error) {
	metas := make([]upload.FileMeta, len(files))
	for i, f := range files {
		metas[i] = upload.FileMeta{Name: f.Name, Size: int64(len(f.Data)), MimeType: f.MimeType}
	}
	added, err := c.AddFiles(metas...)
	if err != nil {
		return upload.Artifacts{}, err
	}
	if err := c.ExtractFiles(ctx, ex, added, files); err != nil {
		return c.State().Uploads, err
	}
	return c.State().Uploads, nil
}

// ExtractFiles runs previously added files through ex in order, applying each
// result as it arrives. metas[i] must describe files[i]. When the batch
// finishes and ctx is still live, OnUploadComplete runs.
func (c *Controller) ExtractFiles(ctx context.Context, ex extraction.Extractor, metas []upload.FileMeta, files []extraction.File) error {
	if len(metas) != len(files) {
		return fmt.Errorf("extract files: %d metadata entries for %d files", len(metas), len(files))
	}

	err := extraction.Process(ctx, ex, files, c.logger, func(i int, res upload.Extraction) {
		if _, applyErr := c.ApplyExtraction(metas[i].ID, res); applyErr != nil {
			c.logger.Debug("extraction result after close", zap.String("file", metas[i].Name))
		}
	})
	if err != nil {
		return err
	}
	return c.OnUploadComplete()
}

// -----------------------------------------------------------------------------
// Restore
// -----------------------------------------------------------------------------

// Restore reloads persisted selections and upload artifacts. The current step
// is never restored. Files left processing by an interrupted batch are marked
// as failed.
func (c *Controller) Restore(ctx context.Context) error {
	if c.bridge == nil {
		return nil
	}

	var roleID, roleName, source string
	var files []upload.FileMeta
	var results []upload.Extraction
	var reqs requirements.Requirements
	selected := upload.NoSelection

	hasRole, err := c.bridge.Read(ctx, persistence.KeySelectedRoleID, &roleID)
	if err != nil {
		return err
	}
	if _, err := c.bridge.Read(ctx, persistence.KeySelectedRoleName, &roleName); err != nil {
		return err
	}
	hasSource, err := c.bridge.Read(ctx, persistence.KeyRequirementsSource, &source)
	if err != nil {
		return err
	}
	hasFiles, err := c.bridge.Read(ctx, persistence.KeyUploadedFiles, &files)
	if err != nil {
		return err
	}
	hasResults, err := c.bridge.Read(ctx, persistence.KeyExtractionResults, &results)
	if err != nil {
		return err
	}
	if _, err := c.bridge.Read(ctx, persistence.KeySelectedFileIndex, &selected); err != nil {
		return err
	}
	hasReqs, err := c.bridge.Read(ctx, persistence.KeyGeneratedReqs, &reqs)
	if err != nil {
		return err
	}

	return c.mutate(func() error {
		if hasRole && roleID != "" {
			c.selections.SetTargetRole(roleID, roleName)
		}
		if hasSource {
			switch source {
			case persistence.SourceUploadedDocument:
				c.selections.SetRequirementChoice(RequirementHave)
			case persistence.SourceDefined:
				c.selections.SetRequirementChoice(RequirementDefine)
			}
		}
		if hasReqs {
			c.requirements = &reqs
		}
		if hasFiles && hasResults && len(files) == len(results) {
			for i := range results {
				if results[i].IsProcessing {
					results[i] = upload.Interrupted()
				}
			}
			restored := upload.Artifacts{Files: files, Results: results, Selected: selected}
			if !restored.Consistent() {
				restored.Selected = upload.NoSelection
			}
			c.uploads = restored
		} else if hasFiles || hasResults {
			c.logger.Warn("discarding inconsistent persisted uploads",
				zap.Int("files", len(files)), zap.Int("results", len(results)))
		}
		return nil
	})
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

// mutate runs fn under the lock and dispatches queued events after unlocking.
func (c *Controller) mutate(fn func() error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	err := fn()
	events := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	c.dispatch(events)
	return err
}

func (c *Controller) dispatch(events []Event) {
	for _, ev := range events {
		if ev.Type == EventExit && c.onExit != nil {
			c.onExit()
		}
		if c.observer != nil {
			c.observer(ev)
		}
	}
}

func (c *Controller) scheduleAdvanceLocked(key string) {
	from := c.seq.Current()
	c.scheduler.Schedule(key, func() {
		err := c.mutate(func() error {
			// A manual transition in the meantime supersedes this one.
			if c.seq.Current() != from {
				return nil
			}
			c.afterMoveLocked(c.seq.Advance())
			return nil
		})
		if err != nil {
			c.logger.Debug("auto-advance skipped", zap.String("transition", key), zap.Error(err))
		}
	})
}

func (c *Controller) afterMoveLocked(move Move) {
	if move == MoveNone || move == MoveExit {
		return
	}
	c.fixBranchLocked()

	step := c.resolveLocked()
	if step == StepAnalysisProgress && c.lastStep != StepAnalysisProgress {
		c.persistLocked(persistence.KeyAnalysisActive, true)
	} else if step != StepAnalysisProgress && c.lastStep == StepAnalysisProgress {
		c.persistLocked(persistence.KeyAnalysisActive, false)
	}
	c.lastStep = step

	c.queueLocked(Event{Type: EventTransition, Index: c.seq.Current(), Step: step})
	if step == StepNone {
		c.logger.Error("transitioned to unresolvable step",
			zap.Int("index", c.seq.Current()),
			zap.String("requirement_choice", string(c.selections.Snapshot().RequirementChoice)))
		c.queueLocked(Event{
			Type:    EventInternalError,
			Index:   c.seq.Current(),
			Step:    StepNone,
			Message: "no screen for this step",
		})
	}
}

func (c *Controller) fixBranchLocked() {
	if !c.branchFixed && c.seq.Current() >= BranchIndex && c.selections.Snapshot().RequirementChoice.Valid() {
		c.branchFixed = true
	}
}

func (c *Controller) resolveLocked() StepID {
	return ResolveStep(c.seq.Flow(), c.seq.Current(), c.selections.Snapshot())
}

func (c *Controller) viewLocked() View {
	return View{
		Index:        c.seq.Current(),
		Total:        c.seq.Total(),
		Selections:   c.selections.Snapshot(),
		Uploads:      c.uploads,
		Requirements: c.requirements,
	}
}

func (c *Controller) queueLocked(ev Event) {
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	c.outbox = append(c.outbox, ev)
}

func (c *Controller) queueScrollTop() {
	c.queueLocked(Event{Type: EventScrollTop, Index: c.seq.Current()})
}

func (c *Controller) queueExit() {
	c.queueLocked(Event{Type: EventExit, Index: c.seq.Current()})
}

func (c *Controller) queueUploadLocked(t EventType) {
	snapshot := c.uploads
	c.queueLocked(Event{Type: t, Index: c.seq.Current(), Step: c.resolveLocked(), Uploads: &snapshot})
}

func (c *Controller) persistUploadsLocked() {
	c.persistLocked(persistence.KeyUploadedFiles, c.uploads.Files)
	c.persistLocked(persistence.KeyExtractionResults, c.uploads.Results)
	c.persistLocked(persistence.KeyCombinedResumeText, c.uploads.CombinedText())
	c.persistLocked(persistence.KeySelectedFileIndex, c.uploads.Selected)
}

// persistLocked writes a snapshot value. Storage failures are logged; they
// never fail the transition that produced the value.
func (c *Controller) persistLocked(key persistence.Key, value any) {
	if c.bridge == nil {
		return
	}
	if err := c.bridge.Write(c.ctx, key, value); err != nil {
		c.logger.Warn("failed to persist snapshot value", zap.String("key", string(key)), zap.Error(err))
	}
}

func requirementsSource(choice RequirementChoice) string {
	if choice == RequirementHave {
		return persistence.SourceUploadedDocument
	}
	return persistence.SourceDefined
}
