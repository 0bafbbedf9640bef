// Package responder runs one pass of the auto-responder: fetch unread
// mail, summarize each message with the reader agent, print the result
// and answer the sender with a fixed reply.
package responder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/autoreply/internal/agent"
	"github.com/nhle/autoreply/internal/mailbox"
	"github.com/nhle/autoreply/internal/model"
)

// ErrRepliesFailed is returned by Run when at least one reply could not
// be sent.
var ErrRepliesFailed = errors.New("some replies failed")

// Mailbox is the source of unread messages.
type Mailbox interface {
	FetchUnread(ctx context.Context, limit int) ([]mailbox.InboundMessage, error)
	MarkReplied(ctx context.Context, uids []uint32) error
}

// Sender submits composed replies.
type Sender interface {
	Send(ctx context.Context, reply *mailbox.Reply) error
}

// History records runs and answers whether a message was already handled.
type History interface {
	CreateRun(ctx context.Context, run model.Run) error
	FinishRun(ctx context.Context, run model.Run) error
	RecordReply(ctx context.Context, rec model.ReplyRecord) error
	HasReplied(ctx context.Context, messageID string) (bool, error)
}

// Options controls a run.
type Options struct {
	// From is the address replies are sent from.
	From          string
	ReplyBody     string
	SubjectPrefix string

	// DryRun summarizes and reports without sending or flagging.
	DryRun bool

	// Limit caps the number of messages handled; zero means no cap.
	Limit int
}

// Result summarizes a finished run.
type Result struct {
	RunID   string
	Fetched int
	Replied int
	Skipped int
	Failed  int
}

// Responder wires a mailbox, an agent and an SMTP sender together.
type Responder struct {
	mailbox Mailbox
	sender  Sender
	history History
	reader  *agent.Agent
	opts    Options
	out     report
	logger  *slog.Logger
}

// New creates a Responder. Report lines go to out.
func New(
	mb Mailbox,
	sender Sender,
	history History,
	reader *agent.Agent,
	opts Options,
	out io.Writer,
	logger *slog.Logger,
) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReplyBody == "" {
		opts.ReplyBody = model.DefaultReplyBody
	}

	return &Responder{
		mailbox: mb,
		sender:  sender,
		history: history,
		reader:  reader,
		opts:    opts,
		out:     report{w: out},
		logger:  logger,
	}
}

// Run performs one pass over the unread mail. Fetch and history setup
// failures abort the run. Summaries are best effort. A failed reply is
// recorded and the run continues; Run then returns ErrRepliesFailed with
// the result.
func (r *Responder) Run(ctx context.Context) (*Result, error) {
	run := model.Run{ID: uuid.New().String(), StartedAt: time.Now()}
	if err := r.history.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}

	logger := r.logger.With("run_id", run.ID)
	res := &Result{RunID: run.ID}

	messages, err := r.mailbox.FetchUnread(ctx, r.opts.Limit)
	if err != nil {
		r.finish(ctx, run, res)
		return res, err
	}
	res.Fetched = len(messages)

	if len(messages) == 0 {
		r.out.noMail()
		r.finish(ctx, run, res)
		return res, nil
	}

	r.out.banner(len(messages), r.opts.DryRun)

	// answered collects the UIDs to flag: fresh replies and messages a
	// previous run answered but failed to flag.
	var answered []uint32
	for i, msg := range messages {
		if err := ctx.Err(); err != nil {
			r.flag(ctx, logger, answered)
			r.finish(ctx, run, res)
			return res, err
		}

		if r.alreadyReplied(ctx, logger, msg) {
			r.out.skipped(msg.From)
			res.Skipped++
			if !r.opts.DryRun {
				answered = append(answered, msg.UID)
			}
			continue
		}

		rec := r.handle(ctx, logger, run.ID, i+1, msg)
		switch rec.Status {
		case model.ReplyStatusSent:
			res.Replied++
			answered = append(answered, msg.UID)
		case model.ReplyStatusFailed:
			res.Failed++
		}

		if err := r.history.RecordReply(ctx, rec); err != nil {
			logger.Warn("recording reply", "uid", msg.UID, "error", err)
		}
	}

	r.flag(ctx, logger, answered)

	r.out.done(res, r.opts.DryRun)
	r.finish(ctx, run, res)

	logger.Info("run finished",
		"fetched", res.Fetched, "replied", res.Replied,
		"skipped", res.Skipped, "failed", res.Failed,
	)

	if res.Failed > 0 {
		return res, fmt.Errorf("%d of %d: %w", res.Failed, res.Fetched, ErrRepliesFailed)
	}
	return res, nil
}

// alreadyReplied consults the history. Lookup errors are logged and
// treated as "not replied".
func (r *Responder) alreadyReplied(
	ctx context.Context, logger *slog.Logger, msg mailbox.InboundMessage,
) bool {
	done, err := r.history.HasReplied(ctx, msg.MessageID)
	if err != nil {
		logger.Warn("checking reply history", "uid", msg.UID, "error", err)
		return false
	}
	if done {
		logger.Info("skipping message already replied to",
			"uid", msg.UID, "message_id", msg.MessageID,
		)
	}
	return done
}

// handle summarizes and answers one message and returns the record of
// what happened.
func (r *Responder) handle(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	index int,
	msg mailbox.InboundMessage,
) model.ReplyRecord {
	rec := model.ReplyRecord{
		RunID:     runID,
		MessageID: msg.MessageID,
		UID:       msg.UID,
		Sender:    msg.From,
		Subject:   msg.Subject,
	}

	rec.Summary, rec.SummaryError = r.summarize(ctx, logger, msg)

	r.out.message(index, msg.From)

	if r.opts.DryRun {
		rec.Status = model.ReplyStatusDryRun
		return rec
	}

	if err := r.reply(ctx, msg); err != nil {
		logger.Error("sending reply", "uid", msg.UID, "to", msg.ReplyAddress(), "error", err)
		r.out.replyFailed(err)
		rec.Status = model.ReplyStatusFailed
		rec.Error = err.Error()
		return rec
	}

	rec.Status = model.ReplyStatusSent
	return rec
}

// summarize runs a one-task crew for msg. Failures are reported and
// returned as text, never as an error.
func (r *Responder) summarize(
	ctx context.Context, logger *slog.Logger, msg mailbox.InboundMessage,
) (summary string, summaryErr string) {
	task := agent.SummarizeEmailTask(r.reader, msg.Body)
	crew := &agent.Crew{
		Agents: []*agent.Agent{r.reader},
		Tasks:  []agent.Task{task},
	}

	result, err := crew.Kickoff(ctx)
	if err != nil {
		logger.Warn("agent failed", "uid", msg.UID, "error", err)
		r.out.agentFailed(err)
	} else {
		r.out.debugResult(result)
	}

	summary, extractErr := result.Summary()
	if extractErr != nil {
		r.out.summaryFailed(extractErr)
		if err != nil {
			return "", err.Error()
		}
		return "", extractErr.Error()
	}

	r.out.summary(summary)
	return summary, ""
}

// reply composes and sends the fixed reply to msg's sender.
func (r *Responder) reply(ctx context.Context, msg mailbox.InboundMessage) error {
	reply, err := mailbox.ComposeReply(
		r.opts.From, msg, r.opts.SubjectPrefix, r.opts.ReplyBody,
	)
	if err != nil {
		return err
	}
	return r.sender.Send(ctx, reply)
}

// flag marks uids as seen and answered. It runs even when ctx was
// cancelled so that replies already sent are not fetched again.
func (r *Responder) flag(ctx context.Context, logger *slog.Logger, uids []uint32) {
	if len(uids) == 0 {
		return
	}
	if err := r.mailbox.MarkReplied(context.WithoutCancel(ctx), uids); err != nil {
		logger.Warn("flagging replied messages", "count", len(uids), "error", err)
	}
}

// finish stores the final counters; failures are only logged.
func (r *Responder) finish(ctx context.Context, run model.Run, res *Result) {
	now := time.Now()
	run.FinishedAt = &now
	run.Fetched = res.Fetched
	run.Replied = res.Replied
	run.Skipped = res.Skipped
	run.Failed = res.Failed

	// The run record is written even when ctx was cancelled mid-run.
	if err := r.history.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Warn("finishing run", "run_id", run.ID, "error", err)
	}
}
