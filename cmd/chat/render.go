package main

import (
	"fmt"
	"io"

	"github.com/Rrens/docqa/internal/domain"
	"github.com/fatih/color"
)

var (
	userLabel      = color.New(color.FgCyan, color.Bold)
	assistantLabel = color.New(color.FgGreen, color.Bold)
	pendingStyle   = color.New(color.FgYellow)
	failedStyle    = color.New(color.FgRed)
	faint          = color.New(color.Faint)
	promptStyle    = color.New(color.FgMagenta, color.Bold)
)

func renderEntry(w io.Writer, e domain.ConversationEntry) {
	label := assistantLabel
	name := "Assistant"
	if e.Role == domain.RoleUser {
		label = userLabel
		name = "You"
	}
	label.Fprintf(w, "%s: ", name)

	switch e.Status {
	case domain.StatusPending:
		pendingStyle.Fprintln(w, e.Content+" …")
	case domain.StatusFailed:
		failedStyle.Fprintln(w, e.Content)
	default:
		fmt.Fprintln(w, e.Content)
	}
}

func renderTranscript(w io.Writer, entries []domain.ConversationEntry) {
	for _, e := range entries {
		renderEntry(w, e)
	}
}

func renderDocuments(w io.Writer, snap domain.BindingSnapshot) {
	if len(snap.Catalog) == 0 {
		faint.Fprintln(w, "No documents yet. Use /upload <path> to add one.")
		return
	}
	for _, d := range snap.Catalog {
		marker := "  "
		if snap.Current != nil && snap.Current.ID == d.ID {
			marker = "* "
		}
		fmt.Fprintf(w, "%s%-6s %s", marker, d.ID, d.Filename)
		if !d.UploadedAt.IsZero() {
			faint.Fprintf(w, "  (%s)", d.UploadedAt.Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(w)
	}
}

func renderError(w io.Writer, err error) {
	failedStyle.Fprintln(w, domain.UserMessage(err))
}
