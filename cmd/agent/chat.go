package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petasbytes/chatloop/internal/telemetry"
	"github.com/petasbytes/chatloop/memory"
	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
	"github.com/petasbytes/chatloop/tags"
)

const (
	promptUser      = "\u001b[94mYou\u001b[0m: "
	promptAssistant = "\u001b[93mAssistant\u001b[0m: "
	promptTool      = "\u001b[92mtool\u001b[0m: "
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		c := &chat{
			runner: a.runner,
			base:   a.request(),
			store:  a.store,
			id:     a.cfg.ConversationID,
			stream: a.cfg.Stream,
			system: a.cfg.SystemPrompt,
			out:    cmd.OutOrStdout(),
			errOut: cmd.ErrOrStderr(),
		}
		return c.loop(ctx, cmd.InOrStdin())
	},
}

// chat is one terminal conversation persisted under id.
type chat struct {
	runner *runner.Runner
	base   runner.Request
	store  memory.Store
	id     string
	stream bool
	system string
	out    io.Writer
	errOut io.Writer
}

// loop reads user lines from in until EOF or ctx is done. The conversation is
// saved after every turn.
func (c *chat) loop(ctx context.Context, in io.Reader) error {
	history, err := c.store.Load(ctx, c.id)
	if err != nil {
		fmt.Fprintf(c.errOut, "warning: failed to load conversation: %v\n", err)
	}
	history = withSystemPrompt(history, c.system)

	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, "Chat with the assistant (Ctrl-C to quit)")
	for {
		fmt.Fprint(c.out, promptUser)
		var (
			user string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "\nExiting...")
			return nil
		case user, ok = <-lines:
			if !ok {
				return scanner.Err()
			}
		}
		if strings.TrimSpace(user) == "" {
			continue
		}

		history = c.turn(ctx, history, user)
		// Save even when the turn was interrupted.
		if err := c.store.Save(context.WithoutCancel(ctx), c.id, history); err != nil {
			fmt.Fprintf(c.errOut, "warning: failed to save conversation: %v\n", err)
		}
	}
}

// turn runs one user message and returns the updated history. A failed run is
// recorded as a local error message that is shown but never sent.
func (c *chat) turn(ctx context.Context, history []message.Message, user string) []message.Message {
	history = append(history, message.NewUser(user))
	req := c.base
	req.Messages = history

	var (
		produced []message.Message
		err      error
	)
	if c.stream {
		produced, err = c.streamRun(ctx, req)
	} else {
		produced, err = c.batchRun(ctx, req)
	}

	if len(produced) > 0 {
		telemetry.EmitLocalFeatures(telemetry.WithRunID(ctx, produced[0].RunID), user)
	}
	for i := len(produced) - 1; i >= 0; i-- {
		if produced[i].Role == message.RoleAssistant {
			produced[i] = recordMemory(produced[i])
			break
		}
	}
	for _, m := range produced {
		history = message.Upsert(history, m)
	}

	if err != nil {
		fmt.Fprintf(c.errOut, "error: %v\n", err)
		detail := err.Error()
		em := message.NewAssistant(detail).ApplyKind(message.KindError).ApplyMetadata(message.MetaError, &detail)
		history = append(history, em)
	}
	return history
}

func (c *chat) batchRun(ctx context.Context, req runner.Request) ([]message.Message, error) {
	resp, err := c.runner.Run(ctx, req)
	if resp == nil {
		return nil, err
	}
	for _, m := range resp.Messages {
		switch m.Role {
		case message.RoleAssistant:
			if text := visibleText(m.Content); text != "" {
				fmt.Fprintf(c.out, "%s%s\n", promptAssistant, text)
			}
		case message.RoleTool:
			c.showTool(m)
		}
	}
	if resp.Truncated {
		fmt.Fprintln(c.errOut, "warning: run stopped at the loop limit")
	}
	return resp.Messages, err
}

// streamRun prints assistant text as it arrives. Each yielded message is the
// accumulated state, so only the unseen suffix is written.
func (c *chat) streamRun(ctx context.Context, req runner.Request) ([]message.Message, error) {
	var (
		produced []message.Message
		current  string
		printed  int
	)
	endLine := func() {
		if current != "" && printed > 0 {
			fmt.Fprintln(c.out)
		}
		current, printed = "", 0
	}
	defer endLine()

	for m, err := range c.runner.Stream(ctx, req) {
		if err != nil {
			return produced, err
		}
		produced = message.Upsert(produced, m)

		if m.Role == message.RoleTool {
			endLine()
			c.showTool(m)
			continue
		}
		if m.ID != current {
			endLine()
			current = m.ID
		}
		if len(m.Content) > printed {
			if printed == 0 {
				fmt.Fprint(c.out, promptAssistant)
			}
			fmt.Fprint(c.out, m.Content[printed:])
			printed = len(m.Content)
		}
	}
	return produced, nil
}

func (c *chat) showTool(m message.Message) {
	status := "ok"
	if m.Metadata[message.MetaIsError] == "true" || m.Metadata[message.MetaError] != "" {
		status = "failed"
	}
	fmt.Fprintf(c.out, "%s%s %s (%d bytes)\n", promptTool, m.Name, status, len(m.Content))
}

// recordMemory copies <memory key="k">v</memory> directives in m's content
// into its metadata under MetaMemoryPrefix+k.
func recordMemory(m message.Message) message.Message {
	for _, seg := range tags.All(tags.Parse(m.Content, "memory"), "memory") {
		key := strings.TrimSpace(seg.Attrs["key"])
		if key == "" {
			continue
		}
		v := strings.TrimSpace(seg.Content)
		m = m.ApplyMetadata(message.MetaMemoryPrefix+key, &v)
	}
	return m
}

// visibleText drops memory directives from content.
func visibleText(content string) string {
	var b strings.Builder
	for _, seg := range tags.Parse(content, "memory") {
		if seg.Kind == tags.SegmentText {
			b.WriteString(seg.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// withSystemPrompt prepends prompt unless the history already starts with a
// system message.
func withSystemPrompt(history []message.Message, prompt string) []message.Message {
	if strings.TrimSpace(prompt) == "" {
		return history
	}
	if len(history) > 0 && history[0].Role == message.RoleSystem {
		return history
	}
	return append([]message.Message{message.NewSystem(prompt)}, history...)
}
