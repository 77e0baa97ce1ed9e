package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads operator input.
type Prompter struct {
	In  io.Reader
	Out io.Writer
	fd  int

	lines *bufio.Reader
}

// NewPrompter reads from stdin and prompts on out.
func NewPrompter(out io.Writer) *Prompter {
	return &Prompter{In: os.Stdin, Out: out, fd: int(os.Stdin.Fd())}
}

// Password prompts for a password. On a terminal the input is not echoed; otherwise one line is
// read from In so the command can be scripted.
func (p *Prompter) Password(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.Out, prompt+": "); err != nil {
		return "", err
	}
	if p.In == os.Stdin && term.IsTerminal(p.fd) {
		pw, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	if p.lines == nil {
		p.lines = bufio.NewReader(p.In)
	}
	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewPassword prompts twice and requires both entries to match.
func (p *Prompter) NewPassword() (string, error) {
	first, err := p.Password("New password")
	if err != nil {
		return "", err
	}
	second, err := p.Password("Repeat password")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}
