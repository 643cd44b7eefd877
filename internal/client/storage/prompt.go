package storage

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter reads answers line by line.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPrompter reads from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Ask prints question and returns the trimmed answer. It returns
// io.ErrUnexpectedEOF when input ends first.
func (p *Prompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// Credentials asks for an email and a password.
func (p *Prompter) Credentials() (email, password string, err error) {
	if email, err = p.Ask("Email: "); err != nil {
		return "", "", err
	}
	if password, err = p.Ask("Password: "); err != nil {
		return "", "", err
	}
	return email, password, nil
}

// Task asks for a task name and due date.
func (p *Prompter) Task() (name, due string, err error) {
	if name, err = p.Ask("Task name: "); err != nil {
		return "", "", err
	}
	if due, err = p.Ask("Due date (YYYY-MM-DD): "); err != nil {
		return "", "", err
	}
	return name, due, nil
}
