package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"

	"github.com/ojalaai/ojala/pkg/chat"
	"github.com/ojalaai/ojala/pkg/compose"
	"github.com/ojalaai/ojala/pkg/logger"
	"github.com/ojalaai/ojala/pkg/media"
	"github.com/ojalaai/ojala/pkg/pdf"
	"github.com/ojalaai/ojala/pkg/render"
	"github.com/ojalaai/ojala/pkg/stream"
)

const chatHelp = `Type a message and press Enter to send it.

  /attach <path>...   attach images (PNG, JPG, GIF, WebP) or PDFs
  /paste              paste file paths, one or more per line, end with an empty line
  /detach <n>|all     remove an attachment from the next message
  /files              list attachments of the next message
  /help               show this help
  /quit               leave

Dropping files on the terminal attaches them. An empty line sends the
attachments alone. Ctrl-C while a reply is streaming stops it.`

var errQuit = errors.New("quit")

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Start an interactive chat",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Chat endpoint URL, overrides client.endpoint",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Model requested from the endpoint",
			},
		},
		Action: runChat,
	}
}

type repl struct {
	rl      *readline.Instance
	session *chat.Session
	out     io.Writer
}

func runChat(c *cli.Context) error {
	cfg, err := loadConfig(c, "warn")
	if err != nil {
		return err
	}
	if c.IsSet("endpoint") {
		cfg.Client.Endpoint = c.String("endpoint")
	}
	if c.IsSet("model") {
		cfg.Client.Model = c.String("model")
	}
	if err := cfg.ValidateClient(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		previewer media.Previewer
		pages     compose.PageSource
	)
	if rasterizer, err := pdf.NewDefault(); err != nil {
		logger.WarnCF("chat", "PDF attachments unavailable",
			map[string]interface{}{"error": err.Error()})
	} else {
		previewer = rasterizer
		pages = rasterizer
	}

	if err := ensureHistoryDir(cfg.Client.HistoryFile); err != nil {
		logger.WarnCF("chat", "Cannot create history directory",
			map[string]interface{}{"error": err.Error()})
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "you> ",
		HistoryFile:       cfg.Client.HistoryFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "bye",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to start line editor: %w", err)
	}
	defer rl.Close()

	notices := media.NewNotices(media.NoticeTTL)
	notices.OnChange(func(message string) {
		if message != "" {
			fmt.Fprintf(rl.Stderr(), "! %s\n", message)
		}
		rl.Refresh()
	})

	temperature := cfg.Client.Temperature
	client := stream.NewClient(stream.Config{
		Endpoint:          cfg.Client.Endpoint,
		Model:             cfg.Client.Model,
		Temperature:       &temperature,
		SystemInstruction: cfg.Client.SystemInstruction,
	})
	session := chat.NewSession(client, compose.NewComposer(pages), media.NewIntake(previewer, notices))

	projector := render.NewProjector(rl.Stdout(), render.DefaultInterval)
	session.Subscribe(projector.Observe)

	fmt.Fprintf(rl.Stdout(), "ojala %s, talking to %s. /help for commands.\n", version, cfg.Client.Endpoint)

	r := &repl{rl: rl, session: session, out: rl.Stdout()}
	return r.run(c.Context)
}

// ensureHistoryDir creates the directory holding the line editor history.
func ensureHistoryDir(historyFile string) error {
	if historyFile == "" {
		return nil
	}
	dir := filepath.Dir(historyFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

func (r *repl) prompt() string {
	if n := len(r.session.Draft().Attachments); n > 0 {
		return fmt.Sprintf("you [%d]> ", n)
	}
	return "you> "
}

func (r *repl) run(ctx context.Context) error {
	for {
		r.rl.SetPrompt(r.prompt())
		line, err := r.rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		if err := r.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	trimmed := strings.TrimSpace(line)

	if trimmed == "" {
		if len(r.session.Draft().Attachments) > 0 {
			r.session.SetInput("")
			r.submit(ctx)
		}
		return nil
	}

	if paths, ok := droppedFiles(trimmed); ok {
		r.attach(ctx, paths)
		return nil
	}

	if strings.HasPrefix(trimmed, "/") {
		return r.command(ctx, trimmed)
	}

	r.session.SetInput(line)
	r.submit(ctx)
	return nil
}

func (r *repl) command(ctx context.Context, line string) error {
	name, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)

	switch name {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/attach":
		paths, err := splitPaths(args)
		if err != nil {
			fmt.Fprintf(r.out, "! %s\n", err)
			return nil
		}
		if len(paths) == 0 {
			fmt.Fprintln(r.out, "usage: /attach <path>...")
			return nil
		}
		r.attach(ctx, paths)
	case "/paste":
		r.attach(ctx, r.readPasted())
	case "/detach":
		r.detach(args)
	case "/files":
		r.listFiles()
	default:
		fmt.Fprintf(r.out, "unknown command %s, try /help\n", name)
	}
	return nil
}

// submit sends the compose buffer. Ctrl-C during the exchange cancels it.
// On failure the typed text goes back into the line editor.
func (r *repl) submit(ctx context.Context) {
	exchangeCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if r.session.Submit(exchangeCtx) {
		return
	}
	if st := r.session.State(); st.Phase == stream.PhaseFailed {
		draft := r.session.Draft()
		if draft.Input != "" {
			r.rl.WriteStdin([]byte(draft.Input))
		}
	}
}

func (r *repl) attach(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	sources, errs := openSources(paths)
	for _, err := range errs {
		fmt.Fprintf(r.out, "! %s\n", err)
	}
	if len(sources) == 0 {
		return
	}

	before := len(r.session.Draft().Attachments)
	r.session.AddFiles(ctx, sources)
	for _, att := range r.session.Draft().Attachments[before:] {
		fmt.Fprintf(r.out, "+ %s (%s)\n", att.Name, att.Kind)
	}
}

// readPasted collects paths until an empty line.
func (r *repl) readPasted() []string {
	r.rl.SetPrompt("paste> ")
	var paths []string
	for {
		line, err := r.rl.Readline()
		if err != nil || strings.TrimSpace(line) == "" {
			return paths
		}
		tokens, err := splitPaths(strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintf(r.out, "! %s\n", err)
			continue
		}
		paths = append(paths, tokens...)
	}
}

func (r *repl) detach(arg string) {
	atts := r.session.Draft().Attachments
	if arg == "all" {
		for _, att := range atts {
			r.session.RemoveAttachment(att.ID)
		}
		return
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(atts) {
		fmt.Fprintln(r.out, "usage: /detach <n>|all, see /files")
		return
	}
	att := atts[n-1]
	if r.session.RemoveAttachment(att.ID) {
		fmt.Fprintf(r.out, "- %s\n", att.Name)
	}
}

func (r *repl) listFiles() {
	atts := r.session.Draft().Attachments
	if len(atts) == 0 {
		fmt.Fprintln(r.out, "no attachments")
		return
	}
	for i, att := range atts {
		fmt.Fprintf(r.out, "%2d. %s (%s, %s)\n", i+1, att.Name, att.Kind, att.MediaType)
	}
}
