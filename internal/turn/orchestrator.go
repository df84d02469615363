package turn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/docqa/internal/binding"
	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/reconcile"
	"github.com/Rrens/docqa/internal/transcript"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Notices appended by the orchestrator
const (
	NoticeNoDocument = "Please upload a document first before asking questions."
	NoticeDeleted    = "Document deleted successfully!"
)

const (
	defaultMergeDelay  = time.Second
	defaultCallTimeout = 2 * time.Minute
)

// Reconciler is what the orchestrator needs to refresh the transcript
type Reconciler interface {
	Schedule(delay time.Duration)
	Merge(ctx context.Context) (reconcile.Result, error)
	Prune(ctx context.Context) (reconcile.Result, error)
}

// Confirmer is asked before a document is deleted. Returning false aborts the turn.
type Confirmer func(ctx context.Context, doc domain.DocumentRef) bool

// Options configures an Orchestrator
type Options struct {
	MergeDelay  time.Duration
	CallTimeout time.Duration
	Now         func() time.Time
	NewID       func() string
	Logger      *zerolog.Logger
}

// Orchestrator drives question, upload and delete turns for one session
type Orchestrator struct {
	store      *transcript.Store
	binding    *binding.Binding
	qa         domain.QAService
	reconciler Reconciler

	mergeDelay  time.Duration
	callTimeout time.Duration
	now         func() time.Time
	newID       func() string
	log         zerolog.Logger
}

// NewOrchestrator wires an orchestrator to a session's components
func NewOrchestrator(store *transcript.Store, b *binding.Binding, qa domain.QAService, rec Reconciler, opts Options) *Orchestrator {
	if opts.MergeDelay < 0 {
		opts.MergeDelay = 0
	} else if opts.MergeDelay == 0 {
		opts.MergeDelay = defaultMergeDelay
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = domain.NewLocalID
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Orchestrator{
		store:       store,
		binding:     b,
		qa:          qa,
		reconciler:  rec,
		mergeDelay:  opts.MergeDelay,
		callTimeout: opts.CallTimeout,
		now:         opts.Now,
		newID:       opts.NewID,
		log:         logger.With().Str("component", "turn").Logger(),
	}
}

// SubmitQuestion starts a question turn against the bound document. The
// pending user entry is in the transcript when this returns.
func (o *Orchestrator) SubmitQuestion(ctx context.Context, text string) *Turn {
	t := newTurn(KindQuestion)

	text = strings.TrimSpace(text)
	if text == "" {
		t.finish(Result{State: StateRejected, Err: domain.ErrEmptyQuestion})
		return t
	}

	t.advance(StateAwaitingContext, "")
	doc := o.binding.Current()
	if doc == nil {
		notice := o.notice(NoticeNoDocument, domain.StatusSettled)
		o.store.Append(notice)
		t.finish(Result{State: StateRejected, EntryID: notice.ID})
		return t
	}

	question := domain.ConversationEntry{
		ID:        o.newID(),
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: o.now(),
		Status:    domain.StatusPending,
	}
	o.store.Append(question)
	t.advance(StateSending, question.ID)

	go o.runQuestion(context.WithoutCancel(ctx), t, question, doc.ID)
	return t
}

func (o *Orchestrator) runQuestion(ctx context.Context, t *Turn, question domain.ConversationEntry, documentID string) {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	answer, err := o.qa.Ask(ctx, question.Content, documentID)
	if err != nil {
		o.log.Warn().Err(err).Str("document_id", documentID).Msg("question failed")
		reply := o.notice("Error: "+domain.UserMessage(err), domain.StatusFailed)
		reply.SourcePair = question.ID
		o.store.Resolve(question.ID, transcript.Outcome{Status: domain.StatusFailed, Follow: &reply})
		t.finish(Result{State: StateFailed, Err: err})
		return
	}

	reply := domain.ConversationEntry{
		ID:         o.newID(),
		Role:       domain.RoleAssistant,
		Content:    answer.Text,
		CreatedAt:  o.now(),
		Status:     domain.StatusSettled,
		SourcePair: question.ID,
		HistoryID:  answer.HistoryID,
	}
	o.store.Resolve(question.ID, transcript.Outcome{
		Status:    domain.StatusSettled,
		HistoryID: answer.HistoryID,
		Follow:    &reply,
	})
	o.reconciler.Schedule(o.mergeDelay)
	t.finish(Result{State: StateSettled, Answer: answer})
}

// SubmitUpload starts an upload turn. A successful upload becomes the bound document.
func (o *Orchestrator) SubmitUpload(ctx context.Context, upload domain.Upload) *Turn {
	t := newTurn(KindUpload)

	if strings.TrimSpace(upload.Filename) == "" || upload.Content == nil {
		t.finish(Result{State: StateRejected, Err: domain.ErrEmptyUpload})
		return t
	}

	pending := domain.ConversationEntry{
		ID:        o.newID(),
		Role:      domain.RoleUser,
		Content:   fmt.Sprintf("Uploading: %s...", upload.Filename),
		CreatedAt: o.now(),
		Status:    domain.StatusPending,
	}
	o.store.Append(pending)
	t.advance(StateUploading, pending.ID)

	go o.runUpload(context.WithoutCancel(ctx), t, pending, upload)
	return t
}

func (o *Orchestrator) runUpload(ctx context.Context, t *Turn, pending domain.ConversationEntry, upload domain.Upload) {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	doc, err := o.qa.Upload(ctx, upload)
	if err != nil {
		o.log.Warn().Err(err).Str("filename", upload.Filename).Msg("upload failed")
		failure := o.notice("Failed to upload document: "+domain.UserMessage(err), domain.StatusFailed)
		o.store.Supersede(pending.ID, failure)
		t.finish(Result{State: StateFailed, EntryID: failure.ID, Err: err})
		return
	}

	if doc.Filename == "" {
		doc.Filename = upload.Filename
	}
	o.binding.Bind(*doc)

	success := o.notice(fmt.Sprintf("Document %q uploaded successfully! You can now ask questions about it.", upload.Filename), domain.StatusSettled)
	o.store.Supersede(pending.ID, success)
	o.log.Info().Str("document_id", doc.ID).Str("filename", doc.Filename).Msg("document uploaded")

	o.reconciler.Schedule(o.mergeDelay)
	t.finish(Result{State: StateSettled, EntryID: success.ID, Document: doc})
}

// DeleteDocument starts a delete turn. Nothing happens unless confirm agrees.
func (o *Orchestrator) DeleteDocument(ctx context.Context, documentID string, confirm Confirmer) *Turn {
	t := newTurn(KindDelete)

	doc, ok := o.binding.Lookup(documentID)
	if !ok {
		doc = domain.DocumentRef{ID: documentID}
	}
	t.advance(StateAwaitingConfirmation, "")

	go o.runDelete(ctx, t, doc, confirm)
	return t
}

func (o *Orchestrator) runDelete(ctx context.Context, t *Turn, doc domain.DocumentRef, confirm Confirmer) {
	if confirm == nil || !confirm(ctx, doc) {
		t.finish(Result{State: StateDeclined})
		return
	}
	t.advance(StateDeleting, "")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.callTimeout)
	defer cancel()

	if err := o.qa.DeleteDocument(ctx, doc.ID); err != nil {
		o.log.Warn().Err(err).Str("document_id", doc.ID).Msg("delete failed")
		failure := o.notice("Failed to delete document: "+domain.UserMessage(err), domain.StatusFailed)
		o.store.Append(failure)
		t.finish(Result{State: StateFailed, EntryID: failure.ID, Err: err})
		return
	}

	o.binding.RemoveFromCatalog(doc.ID)
	// history attached to the document may be gone, including pairs answered
	// locally; refresh before the notice so the notice survives the merge
	_, _ = o.reconciler.Prune(ctx)

	notice := o.notice(NoticeDeleted, domain.StatusSettled)
	o.store.Append(notice)
	o.log.Info().Str("document_id", doc.ID).Msg("document deleted")
	t.finish(Result{State: StateSettled, EntryID: notice.ID, Document: &doc})
}

// SelectDocument binds a catalog member and notes the switch in the transcript
func (o *Orchestrator) SelectDocument(documentID string) (domain.DocumentRef, error) {
	doc, ok := o.binding.Select(documentID)
	if !ok {
		return domain.DocumentRef{}, domain.ErrUnknownDocument
	}
	o.store.Append(o.notice(fmt.Sprintf("Switched to document: %q. You can now ask questions about it.", doc.Filename), domain.StatusSettled))
	return doc, nil
}

func (o *Orchestrator) notice(content string, status domain.EntryStatus) domain.ConversationEntry {
	return domain.ConversationEntry{
		ID:        o.newID(),
		Role:      domain.RoleAssistant,
		Content:   content,
		CreatedAt: o.now(),
		Status:    status,
	}
}
