package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/session"
	"github.com/Rrens/docqa/internal/turn"
)

const helpText = `Commands:
  /upload <path>   upload a document and switch to it
  /docs            list your documents
  /use <id>        switch to a document
  /delete <id>     delete a document
  /sync            merge the server history now
  /history         print the whole conversation
  /logout          end the session and quit
Anything else is asked about the current document.`

type repl struct {
	ctrl *session.Controller
	in   *bufio.Scanner
	out  io.Writer
}

func newREPL(ctrl *session.Controller, in *bufio.Scanner, out io.Writer) *repl {
	return &repl{ctrl: ctrl, in: in, out: out}
}

// Run prints the transcript and reads commands until logout, EOF or ctx ends
func (r *repl) Run(ctx context.Context) error {
	r.printTranscript()
	faint.Fprintln(r.out, "Type /help for commands.")

	for {
		promptStyle.Fprint(r.out, "> ")
		line, ok := r.readLine(ctx)
		if !ok {
			fmt.Fprintln(r.out)
			return r.logout()
		}
		if quit := r.handle(ctx, strings.TrimSpace(line)); quit {
			return nil
		}
	}
}

func (r *repl) readLine(ctx context.Context) (string, bool) {
	if ctx.Err() != nil || !r.in.Scan() {
		return "", false
	}
	return r.in.Text(), true
}

func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	cmd, arg := parseCommand(line)

	switch cmd {
	case "":
		r.ask(ctx, line)
	case "help":
		fmt.Fprintln(r.out, helpText)
	case "docs":
		snap, err := r.ctrl.RefreshDocuments(ctx)
		if err != nil {
			renderError(r.out, err)
		}
		renderDocuments(r.out, snap)
	case "use":
		if arg == "" {
			renderError(r.out, domain.NewError(domain.KindValidation, "Usage: /use <id>", nil))
			return false
		}
		if _, err := r.ctrl.SelectDocument(arg); err != nil {
			renderError(r.out, err)
			return false
		}
		r.printLast()
	case "upload":
		r.upload(ctx, arg)
	case "delete":
		r.delete(ctx, arg)
	case "sync":
		res, err := r.ctrl.Reconcile(ctx)
		if err != nil {
			renderError(r.out, err)
			return false
		}
		faint.Fprintf(r.out, "history %s\n", res)
	case "history":
		r.printTranscript()
	case "logout", "quit", "exit":
		if err := r.logout(); err != nil {
			renderError(r.out, err)
		}
		return true
	default:
		renderError(r.out, domain.NewError(domain.KindValidation, "Unknown command /"+cmd+". Type /help.", nil))
	}
	return false
}

// parseCommand splits "/name arg" lines; plain text yields an empty name
func parseCommand(line string) (string, string) {
	if !strings.HasPrefix(line, "/") {
		return "", ""
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func (r *repl) ask(ctx context.Context, text string) {
	t, err := r.ctrl.SubmitQuestion(ctx, text)
	if err != nil {
		renderError(r.out, err)
		return
	}
	if !t.State().Terminal() {
		faint.Fprintln(r.out, "Thinking...")
	}
	r.finish(ctx, t)
}

func (r *repl) upload(ctx context.Context, path string) {
	if path == "" {
		renderError(r.out, domain.ErrEmptyUpload)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		renderError(r.out, domain.NewError(domain.KindValidation, "Cannot open "+path, err))
		return
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	t, err := r.ctrl.SubmitUpload(ctx, domain.Upload{Filename: filepath.Base(path), Size: size, Content: f})
	if err != nil {
		renderError(r.out, err)
		return
	}
	faint.Fprintf(r.out, "Uploading %s...\n", filepath.Base(path))
	// the turn reads f until it finishes
	r.finish(context.WithoutCancel(ctx), t)
}

func (r *repl) delete(ctx context.Context, id string) {
	if id == "" {
		renderError(r.out, domain.NewError(domain.KindValidation, "Usage: /delete <id>", nil))
		return
	}
	t, err := r.ctrl.DeleteDocument(ctx, id, r.confirm)
	if err != nil {
		renderError(r.out, err)
		return
	}
	res := r.finish(ctx, t)
	if res.State == turn.StateDeclined {
		faint.Fprintln(r.out, "Kept.")
	}
}

// confirm runs on the turn goroutine while the loop is blocked in finish
func (r *repl) confirm(ctx context.Context, doc domain.DocumentRef) bool {
	name := doc.Filename
	if name == "" {
		name = doc.ID
	}
	pendingStyle.Fprintf(r.out, "Delete %q? [y/N] ", name)
	line, ok := r.readLine(ctx)
	if !ok {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (r *repl) finish(ctx context.Context, t *turn.Turn) turn.Result {
	res, _ := t.Wait(ctx)
	if !res.State.Terminal() {
		faint.Fprintln(r.out, "Still working; the result will show up in /history.")
		return res
	}
	if res.EntryID == "" {
		if res.Err != nil && res.State == turn.StateRejected {
			renderError(r.out, res.Err)
		}
		return res
	}

	entries, err := r.ctrl.Transcript()
	if err != nil {
		renderError(r.out, err)
		return res
	}
	printed := false
	for i, e := range entries {
		if e.ID != res.EntryID {
			continue
		}
		// the question was typed by the user; show its reply instead
		if e.Role == domain.RoleUser && i+1 < len(entries) && entries[i+1].SourcePair == e.ID {
			e = entries[i+1]
		}
		renderEntry(r.out, e)
		printed = true
		break
	}
	if !printed && res.Answer != nil {
		renderEntry(r.out, domain.ConversationEntry{Role: domain.RoleAssistant, Content: res.Answer.Text, Status: domain.StatusSettled})
	}
	return res
}

func (r *repl) printTranscript() {
	entries, err := r.ctrl.Transcript()
	if err != nil {
		renderError(r.out, err)
		return
	}
	renderTranscript(r.out, entries)
}

func (r *repl) printLast() {
	entries, err := r.ctrl.Transcript()
	if err != nil || len(entries) == 0 {
		return
	}
	renderEntry(r.out, entries[len(entries)-1])
}

func (r *repl) logout() error {
	err := r.ctrl.Logout(context.Background())
	faint.Fprintln(r.out, "Bye.")
	return err
}
