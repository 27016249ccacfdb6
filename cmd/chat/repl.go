package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Rrens/smart-chat/internal/domain"
	"github.com/Rrens/smart-chat/internal/service"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	currentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

type repl struct {
	controller *service.Controller
	in         io.Reader
	out        io.Writer
	showHTML   bool
}

func newREPL(controller *service.Controller, in io.Reader, out io.Writer) *repl {
	return &repl{controller: controller, in: in, out: out}
}

func (r *repl) run(ctx context.Context) error {
	r.printSession()

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(r.out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if quit := r.handle(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether to exit
func (r *repl) handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		r.send(ctx, line)
		return false
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		r.info("commands: /new /list /switch N /rename TITLE /delete [N] /reset /html /quit")
	case "/new":
		r.controller.NewSession(ctx)
		r.printSession()
	case "/list":
		r.printList()
	case "/switch":
		sess, ok := r.sessionAt(arg)
		if !ok {
			return false
		}
		if err := r.controller.SelectSession(ctx, sess.ID); err != nil {
			r.fail(err)
			return false
		}
		r.printSession()
	case "/rename":
		if arg == "" {
			r.fail(fmt.Errorf("usage: /rename TITLE"))
			return false
		}
		if err := r.controller.RenameSession(ctx, r.controller.CurrentSessionID(), arg); err != nil {
			r.fail(err)
			return false
		}
		r.info("renamed to " + r.controller.Transcript().Title)
	case "/delete":
		id := r.controller.CurrentSessionID()
		if arg != "" {
			sess, ok := r.sessionAt(arg)
			if !ok {
				return false
			}
			id = sess.ID
		}
		if err := r.controller.DeleteSession(ctx, id); err != nil {
			r.fail(err)
			return false
		}
		r.info("deleted")
		r.printSession()
	case "/reset":
		if err := r.controller.Reset(ctx); err != nil {
			r.fail(err)
			return false
		}
		r.printSession()
	case "/html":
		r.showHTML = !r.showHTML
		r.info(fmt.Sprintf("html output: %t", r.showHTML))
	default:
		r.fail(fmt.Errorf("unknown command %s, try /help", name))
	}
	return false
}

func (r *repl) send(ctx context.Context, text string) {
	sent, err := r.controller.Send(ctx, text)
	if err != nil {
		r.fail(err)
		return
	}
	if !sent {
		return
	}

	msgs := r.controller.Transcript().Messages
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != domain.RoleAssistant {
		return
	}
	r.printMessage(last)
}

func (r *repl) sessionAt(arg string) (domain.Session, bool) {
	sessions := r.controller.Sessions()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(sessions) {
		r.fail(fmt.Errorf("pick a session between 1 and %d", len(sessions)))
		return domain.Session{}, false
	}
	return sessions[n-1], true
}

func (r *repl) printList() {
	current := r.controller.CurrentSessionID()
	for i, s := range r.controller.Sessions() {
		line := fmt.Sprintf("%2d. %s (%d messages)", i+1, s.Title, len(s.Messages))
		if s.ID == current {
			fmt.Fprintln(r.out, currentStyle.Render(line+" *"))
			continue
		}
		fmt.Fprintln(r.out, line)
	}
}

func (r *repl) printSession() {
	t := r.controller.Transcript()
	fmt.Fprintln(r.out, titleStyle.Render("── "+t.Title+" ──"))
	for _, m := range t.Messages {
		r.printMessage(m)
	}
}

func (r *repl) printMessage(m service.RenderedMessage) {
	switch {
	case m.Role == domain.RoleUser:
		fmt.Fprintln(r.out, promptStyle.Render("you: ")+m.Content)
	case r.showHTML:
		fmt.Fprintln(r.out, m.HTML)
	default:
		fmt.Fprintln(r.out, assistantStyle.Render(m.Content))
	}
}

func (r *repl) info(msg string) {
	fmt.Fprintln(r.out, infoStyle.Render(msg))
}

func (r *repl) fail(err error) {
	fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
}
