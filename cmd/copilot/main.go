package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"course-copilot/internal/api"
	"course-copilot/internal/chat"
	"course-copilot/internal/config"
	"course-copilot/internal/feed"
	"course-copilot/internal/feedback"
	"course-copilot/internal/logging"
	"course-copilot/internal/poller"
	"course-copilot/internal/store"
	"course-copilot/internal/stream"
	"course-copilot/internal/transcript"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logging.Warnf(".env file not found: %v", err)
	}

	cfg := config.New()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session := cfg.SessionID
	if session == "" {
		boot := api.New(cfg.BaseURL, cfg.WebsocketURL, "")
		s, err := boot.StartSession(ctx)
		if err != nil {
			logging.Fatalf("failed to start session: %v", err)
		}
		session = s.PublicID
		logging.Infof("started new session %s", session)
	}

	client := api.New(cfg.BaseURL, cfg.WebsocketURL, session)

	conv, err := resolveConversation(ctx, client, cfg)
	if err != nil {
		logging.Fatalf("failed to open conversation: %v", err)
	}
	logging.Infof("conversation %s (course %s, model %s, language %s)",
		conv.PublicID, conv.CourseID, conv.ModelName, conv.Language)

	var rec transcript.Recorder
	if cfg.TranscriptPath != "" {
		fr, err := transcript.NewFileRecorder(cfg.TranscriptPath)
		if err != nil {
			logging.Errorf("failed to init transcript recorder: %v", err)
		} else {
			rec = fr
		}
	}

	st := store.New(client)
	janitor := store.NewJanitor(st, cfg.FeedCacheTTL)
	if err := janitor.Start(); err != nil {
		logging.Errorf("failed to start cache janitor: %v", err)
	}
	defer janitor.Stop()

	ui := newTerminalUI()
	rc := feed.New(
		client,
		st,
		poller.New(client),
		stream.New(client),
		feedback.NewService(client),
		conv,
		feed.Options{OnChange: func() {}, OnScroll: func(string) {}},
	)
	rc.Start(ctx)
	defer rc.Stop()

	if err := rc.Refresh(ctx); err != nil {
		logging.Fatalf("failed to load feed: %v", err)
	}

	runPrompt(ctx, rc, conv, ui, rec)
}

// resolveConversation opens the configured chat, falling back to starting
// a fresh one when none is configured or the configured one is gone.
func resolveConversation(ctx context.Context, client *api.Client, cfg *config.Config) (chat.Conversation, error) {
	if cfg.ChatID == "" {
		return client.StartChat(ctx, cfg.CourseID)
	}
	conv, err := client.GetChat(ctx, cfg.CourseID, cfg.ChatID)
	if errors.Is(err, api.ErrChatNotFound) {
		logging.Warnf("chat %s not found, starting a new one", cfg.ChatID)
		return client.StartChat(ctx, cfg.CourseID)
	}
	return conv, err
}

type terminalUI struct {
	student   func(a ...interface{}) string
	assistant func(a ...interface{}) string
	fback     func(a ...interface{}) string
	dim       func(a ...interface{}) string
}

func newTerminalUI() *terminalUI {
	return &terminalUI{
		student:   color.New(color.FgCyan, color.Bold).SprintFunc(),
		assistant: color.New(color.FgGreen, color.Bold).SprintFunc(),
		fback:     color.New(color.FgYellow, color.Bold).SprintFunc(),
		dim:       color.New(color.Faint).SprintFunc(),
	}
}

func (ui *terminalUI) print(snap feed.Snapshot) {
	fmt.Println()
	if len(snap.Messages) == 0 && len(snap.FAQs) > 0 {
		fmt.Println(ui.dim("No messages yet. Suggested questions:"))
		for i, f := range snap.FAQs {
			fmt.Printf("  %d. %s\n", i+1, f.Question)
		}
		fmt.Println(ui.dim("Pick a number or type your own question."))
		return
	}
	for _, m := range snap.Messages {
		label := ui.assistant("assistant")
		switch {
		case m.Sender == chat.SenderStudent:
			label = ui.student("you")
		case m.Kind == feed.RenderFeedback || m.Kind == feed.RenderFeedbackAnswered:
			label = ui.fback("feedback")
		}
		switch m.Kind {
		case feed.RenderPending:
			fmt.Printf("%s: %s\n", label, ui.dim("thinking…"))
		case feed.RenderPendingFailed:
			fmt.Printf("%s: %s\n", label, ui.dim("no answer arrived, give up on this one"))
		case feed.RenderStreaming:
			fmt.Printf("%s: %s %s\n", label, m.Content, ui.dim("…"))
		case feed.RenderFeedbackAnswered:
			fmt.Printf("%s: %s %s\n", label, m.Content, ui.dim("(answered)"))
		default:
			fmt.Printf("%s: %s\n", label, m.Content)
		}
	}
}

func runPrompt(ctx context.Context, rc *feed.Reconciler, conv chat.Conversation, ui *terminalUI, rec transcript.Recorder) {
	scanner := bufio.NewScanner(os.Stdin)
	ui.print(rc.Snapshot())

	for {
		if conv.ReadOnly {
			fmt.Println(ui.dim("conversation is read-only"))
			return
		}
		fmt.Print(ui.student("> "))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		if err := submit(ctx, rc, line, conv, rec); err != nil {
			logging.Errorf("send failed: %v", err)
		}

		// Give pollers and streams a moment, then show what we have;
		// further updates keep arriving while the prompt waits.
		time.Sleep(300 * time.Millisecond)
		ui.print(rc.Snapshot())

		if ctx.Err() != nil {
			return
		}
	}
}

func submit(ctx context.Context, rc *feed.Reconciler, line string, conv chat.Conversation, rec transcript.Recorder) error {
	snap := rc.Snapshot()
	if n, err := strconv.Atoi(line); err == nil && len(snap.FAQs) > 0 {
		if n < 1 || n > len(snap.FAQs) {
			return fmt.Errorf("no suggestion %d", n)
		}
		return rc.SelectFAQ(ctx, snap.FAQs[n-1].FAQID)
	}

	if err := rc.Post(ctx, line); err != nil {
		return err
	}
	if rec != nil {
		err := rec.Append(transcript.Event{
			Timestamp: time.Now().UTC(),
			CourseID:  conv.CourseID,
			ChatID:    conv.PublicID,
			Sender:    chat.SenderStudent,
			Content:   line,
		})
		if err != nil {
			logging.Warnf("transcript append failed: %v", err)
		}
	}
	return nil
}
