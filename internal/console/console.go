// Package console runs the interactive question loop on a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"rag-assistant-go/pkg/log"
)

const (
	prompt      = "Enter your query: "
	exitCommand = "exit"
)

// Answerer produces the reply to one question.
type Answerer interface {
	Answer(ctx context.Context, sessionID, query string) (string, error)
}

// Console reads questions line by line and prints the answers.
type Console struct {
	answerer  Answerer
	in        *bufio.Scanner
	out       io.Writer
	sessionID string
}

// New creates a Console. sessionID tags the transcript of this run.
func New(answerer Answerer, in io.Reader, out io.Writer, sessionID string) *Console {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Console{answerer: answerer, in: scanner, out: out, sessionID: sessionID}
}

// Run loops until the user types exit (any case), input ends or ctx is done.
// A failed turn is reported and the loop continues.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(c.out, prompt)
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return c.in.Err()
		}

		query := strings.TrimSpace(c.in.Text())
		if strings.EqualFold(query, exitCommand) {
			return nil
		}

		answer, err := c.answerer.Answer(ctx, c.sessionID, query)
		if err != nil {
			log.Errorf("[Console] turn failed: %v", err)
			fmt.Fprintf(c.out, "Error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(c.out, "AI: %s\n\n", answer)
	}
}
