package main

import (
	"KBAssist/models"
	"KBAssist/pkg/chat"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive support conversation",
		Long: `Start an interactive support conversation.

Commands inside the prompt:
  /attach <path>       attach a file to the next message
  /clear-attachment    drop the pending attachment
  /good <n>            rate message n positively
  /bad <n>             rate message n negatively
  /analyze             print the conversation analysis
  /history             reprint the transcript
  /quit                leave`,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	s, profile, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (type /quit to leave)\n", profile.Name)
	printTranscript(out, s.Chat.Transcript())

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}
		if quit := handleLine(ctx, out, s, line); quit {
			return nil
		}
	}
}

// handleLine runs one REPL line and reports whether the user asked to leave.
func handleLine(ctx context.Context, out io.Writer, s *chat.Session, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		sendLine(ctx, out, s, line)
		return false
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true
	case "/attach":
		if arg == "" {
			fmt.Fprintln(out, "usage: /attach <path>")
			return false
		}
		f, err := os.Open(arg)
		if err != nil {
			fmt.Fprintf(out, "cannot read %s: %v\n", arg, err)
			return false
		}
		defer f.Close()
		att, err := s.Chat.AttachFrom(filepath.Base(arg), "", f)
		if err != nil {
			fmt.Fprintf(out, "attachment rejected: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "attached %s (%s, %d bytes)\n", att.Name, att.MimeType, att.Size())
	case "/clear-attachment":
		if s.Chat.ClearAttachment() {
			fmt.Fprintln(out, "attachment cleared")
		} else {
			fmt.Fprintln(out, "no attachment pending")
		}
	case "/good", "/bad":
		v := models.FeedbackPositive
		if name == "/bad" {
			v = models.FeedbackNegative
		}
		rateMessage(ctx, out, s, arg, v)
	case "/analyze":
		view, err := s.Analysis.RequestAnalysis(ctx)
		if err != nil {
			fmt.Fprintf(out, "analysis unavailable: %v\n", err)
			return false
		}
		printAnalysis(out, view)
	case "/history":
		printTranscript(out, s.Chat.Transcript())
	default:
		fmt.Fprintf(out, "unknown command %s\n", name)
	}
	return false
}

func sendLine(ctx context.Context, out io.Writer, s *chat.Session, text string) {
	cycle, err := s.Chat.Send(ctx, text)
	switch {
	case errors.Is(err, chat.ErrNothingToSend):
		return
	case err != nil:
		fmt.Fprintf(out, "not sent: %v\n", err)
		return
	}
	n := len(s.Chat.Transcript())
	printMessage(out, n, cycle.Reply)
}

// rateMessage resolves the 1-based transcript position shown by printTranscript.
func rateMessage(ctx context.Context, out io.Writer, s *chat.Session, arg string, v models.Feedback) {
	n, err := strconv.Atoi(arg)
	msgs := s.Chat.Transcript()
	if err != nil || n < 1 || n > len(msgs) {
		fmt.Fprintf(out, "no message %q; use the number shown next to it\n", arg)
		return
	}
	m := msgs[n-1]
	if m.Role != models.RoleModel {
		fmt.Fprintln(out, "only assistant messages can be rated")
		return
	}
	if s.Chat.RecordFeedback(ctx, m.ID, v) {
		fmt.Fprintf(out, "message %d rated %s\n", n, v)
	}
}

func printTranscript(out io.Writer, msgs []models.Message) {
	for i, m := range msgs {
		printMessage(out, i+1, m)
	}
}

func printMessage(out io.Writer, n int, m models.Message) {
	who := "assistant"
	if m.Role == models.RoleUser {
		who = "you"
	}
	fmt.Fprintf(out, "[%d] %s: %s\n", n, who, m.Text)
	if m.Attachment != nil {
		fmt.Fprintf(out, "     attachment: %s (%s)\n", m.Attachment.Name, m.Attachment.MimeType)
	}
	for _, src := range m.Sources {
		title := src.Title
		if title == "" {
			title = src.URI
		}
		fmt.Fprintf(out, "     source: %s <%s>\n", title, src.URI)
	}
	if m.Feedback != models.FeedbackNone {
		fmt.Fprintf(out, "     rated: %s\n", m.Feedback)
	}
}

func printAnalysis(out io.Writer, view chat.AnalysisView) {
	if view.Error != "" {
		fmt.Fprintf(out, "analysis failed: %s\n", view.Error)
	}
	if view.Analysis == nil {
		return
	}
	b, err := json.MarshalIndent(view.Analysis, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "analysis: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(b))
}
