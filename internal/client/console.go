// Package client implements the interactive console shared by the TCP and
// WebSocket chat clients.
package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/omochice/linetalk/pkg/envelope"
)

// Console renders incoming chat envelopes and turns console input into
// outgoing ones. It is transport-agnostic: the prompt loop hands encoded
// lines to whatever send function the caller supplies.
type Console struct {
	username string
	out      io.Writer

	sender *color.Color
	notice *color.Color
}

// New creates a console for username writing to out.
func New(username string, out io.Writer) *Console {
	return &Console{
		username: username,
		out:      out,
		sender:   color.New(color.FgCyan, color.Bold),
		notice:   color.New(color.FgYellow),
	}
}

// Username returns the name this console joins and sends as.
func (c *Console) Username() string {
	return c.username
}

// Print renders one incoming envelope.
func (c *Console) Print(env *envelope.Envelope) {
	switch env.Kind {
	case envelope.KindJoin:
		fmt.Fprintln(c.out, c.notice.Sprintf("*** %s joined the chat ***", env.Sender))
	case envelope.KindLeave:
		fmt.Fprintln(c.out, c.notice.Sprintf("*** %s left the chat ***", env.Sender))
	default:
		fmt.Fprintf(c.out, "%s %s\n", c.sender.Sprintf("[%s]", env.Sender), env.Body)
	}
}

// PrintLine decodes and renders one raw wire line. Undecodable input is
// shown verbatim.
func (c *Console) PrintLine(line string) {
	env, err := envelope.Decode(line)
	if err != nil {
		fmt.Fprintln(c.out, line)
		return
	}
	c.Print(env)
}

// Prompt reads input lines until EOF or a quit command, encoding each one
// as a text envelope handed to send. Blank lines are skipped.
func (c *Console) Prompt(in io.Reader, send func(line string) error) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			return nil
		}
		line, err := envelope.Text(c.username, text).Encode()
		if err != nil {
			return fmt.Errorf("client: encode message: %w", err)
		}
		if err := send(line); err != nil {
			return fmt.Errorf("client: send message: %w", err)
		}
	}
	return scanner.Err()
}
