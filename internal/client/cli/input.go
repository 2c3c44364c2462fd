package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

// nextLine returns the next line from sc, or io.EOF when input is exhausted.
func nextLine(sc *bufio.Scanner) (string, error) {
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return sc.Text(), nil
}

// GetSimpleText prints a prompt to w and reads a single trimmed line.
//
// Example prompt format:
//
//	Prompt text
//	> _
func GetSimpleText(sc *bufio.Scanner, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := nextLine(sc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword prints a password prompt to w and reads a password
// from the user's terminal without echo.
//
// The returned byte slice should be wiped by the caller when no longer needed.
func GetPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// editTerminator ends line-mode editing.
const editTerminator = "."

// ReadEditLines feeds the growing body to onChange after every line until a
// line holding only "." or end of input. It returns the final body.
func ReadEditLines(sc *bufio.Scanner, w io.Writer, onChange func(body string)) (string, error) {
	if _, err := fmt.Fprintf(w, "Type the new body; a line with a single %q ends editing\n", editTerminator); err != nil {
		return "", err
	}

	var lines []string
	for {
		line, err := nextLine(sc)
		if err != nil {
			break
		}
		line = strings.TrimRight(line, "\r")
		if line == editTerminator {
			break
		}
		lines = append(lines, line)
		onChange(strings.Join(lines, "\n"))
	}
	return strings.Join(lines, "\n"), nil
}
