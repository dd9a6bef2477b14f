package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrAborted is returned when the operator interrupts a prompt or input ends.
var ErrAborted = errors.New("prompt aborted")

// Option is one entry of a menu.
type Option struct {
	Key   string
	Label string
}

// Console asks the operator questions. On a terminal it renders huh forms;
// otherwise it reads plain lines, so answers can be piped in.
type Console struct {
	in          io.Reader
	out         io.Writer
	reader      *bufio.Reader
	interactive bool
}

// NewConsole picks form or line mode from whether in is a terminal.
func NewConsole(in *os.File, out io.Writer) *Console {
	fd := in.Fd()
	interactive := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return &Console{in: in, out: out, reader: bufio.NewReader(in), interactive: interactive}
}

// NewLineConsole always reads plain lines.
func NewLineConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out, reader: bufio.NewReader(in)}
}

// Interactive reports whether forms are used.
func (c *Console) Interactive() bool {
	return c.interactive
}

func (c *Console) runForm(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).WithInput(c.in).WithOutput(c.out)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Choose shows a numbered menu and returns the Key of the picked option.
// Invalid answers re-prompt.
func (c *Console) Choose(ctx context.Context, title string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options to choose from")
	}

	if c.interactive {
		var choice string
		opts := make([]huh.Option[string], 0, len(options))
		for _, o := range options {
			opts = append(opts, huh.NewOption(o.Label, o.Key))
		}
		err := c.runForm(ctx, huh.NewSelect[string]().Title(title).Options(opts...).Value(&choice))
		return choice, err
	}

	for {
		fmt.Fprintln(c.out, title)
		keys := make([]string, 0, len(options))
		for i, o := range options {
			fmt.Fprintf(c.out, "%d. %s\n", i+1, o.Label)
			keys = append(keys, strconv.Itoa(i+1))
		}
		fmt.Fprintf(c.out, "Enter choice (%s): ", strings.Join(keys, "/"))

		answer, err := c.readLine(ctx)
		if err != nil {
			return "", err
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
			return options[n-1].Key, nil
		}
		for _, o := range options {
			if strings.EqualFold(answer, o.Key) {
				return o.Key, nil
			}
		}
		fmt.Fprintln(c.out, "Invalid choice. Please try again.")
	}
}

// Confirm asks a yes/no question. detail is shown above the question.
// In line mode only "y" or "yes" count as yes.
func (c *Console) Confirm(ctx context.Context, question, detail string) (bool, error) {
	if c.interactive {
		var ok bool
		field := huh.NewConfirm().Title(question).Description(detail).Affirmative("Yes").Negative("No").Value(&ok)
		err := c.runForm(ctx, field)
		return ok, err
	}

	if detail != "" {
		fmt.Fprintln(c.out, detail)
	}
	fmt.Fprintf(c.out, "%s (y/n): ", question)
	answer, err := c.readLine(ctx)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// ConfirmToken returns whatever the operator types. It satisfies mutate.Confirmer.
func (c *Console) ConfirmToken(ctx context.Context, prompt string) (string, error) {
	if c.interactive {
		var answer string
		err := c.runForm(ctx, huh.NewInput().Title(prompt).Value(&answer))
		return answer, err
	}

	fmt.Fprintf(c.out, "%s: ", prompt)
	return c.readLine(ctx)
}
