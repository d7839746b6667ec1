// Package prompt asks the human running the command to settle ambiguous
// matches on a line-oriented terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cleared-dev/reconcile/internal/disambig"
	"github.com/cleared-dev/reconcile/internal/model"
)

// Terminal is a disambig.Decider reading answers line by line.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal creates a Terminal reading from in and writing to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Choose prints the source and its candidates and reads one answer.
func (t *Terminal) Choose(ctx context.Context, req disambig.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Problem != "" {
		fmt.Fprintf(t.out, "\n%s\n", req.Problem)
	} else {
		fmt.Fprintf(t.out, "\nSeveral records match %s\n", req.Source)
	}

	tw := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tKEY\tDATE\tAMOUNT\tPAYEE\tACCOUNT\tCATEGORY\tTAGS\tNOTES")
	for _, c := range req.Candidates {
		marker := ""
		if c == req.Source {
			marker = "*"
		}
		writeRow(tw, marker, c)
	}
	if err := tw.Flush(); err != nil {
		return "", fmt.Errorf("writing candidates: %w", err)
	}

	fmt.Fprint(t.out, "Enter the key of the duplicate, or n for none: ")
	return t.readLine()
}

// Text prints label and reads one line.
func (t *Terminal) Text(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(t.out, "%s: ", label)
	return t.readLine()
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err != nil {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func writeRow(w io.Writer, marker string, c *model.Transaction) {
	key, err := c.Key()
	if err != nil {
		key = "?"
	}
	amount := model.FormatAmount(c.Amount)
	if c.Type != "" {
		amount += " " + c.Type
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		marker, key, c.Date.Format("2006-01-02"), amount,
		c.Payee, c.AccountName, c.Category, c.Tags.Join(","), c.Notes)
}
