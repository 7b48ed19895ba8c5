package digits

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Alphabet maps recognizer class ids to labels.
type Alphabet []string

// DefaultAlphabet is the ten decimal digits in class-id order.
func DefaultAlphabet() Alphabet {
	return Alphabet{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
}

// Label returns the label for id, or false when id is outside the alphabet.
func (a Alphabet) Label(id int) (string, bool) {
	if id < 0 || id >= len(a) {
		return "", false
	}
	return a[id], true
}

// ParseAlphabet reads one label per line. Lines are trimmed and NFKC
// normalized, so full-width digits load as their ASCII forms; blank lines
// are skipped and a leading UTF-8 BOM is dropped.
func ParseAlphabet(r io.Reader) (Alphabet, error) {
	scanner := bufio.NewScanner(r)
	labels := make(Alphabet, 0, 16)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		line = strings.TrimSpace(norm.NFKC.String(line))
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, errors.New("label list is empty")
	}
	return labels, nil
}

// LoadAlphabet reads a label file. An empty path yields DefaultAlphabet.
func LoadAlphabet(path string) (Alphabet, error) {
	if path == "" {
		return DefaultAlphabet(), nil
	}
	f, err := os.Open(path) //nolint:gosec // G304: label file path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing label file: %v\n", err)
		}
	}()

	a, err := ParseAlphabet(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}
