// Package shell implements the console-driven ceremony.Shell: it reads
// prompts and answers over stdin/stdout, masking password input the way
// an interactive terminal session should.
package shell

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/mpinkus/Sss/pkg/ceremony"
	"github.com/mpinkus/Sss/pkg/kvstore"
	"github.com/mpinkus/Sss/pkg/sealedsecret"
)

// progressTTL bounds how long a session's last-known progress event
// stays visible to a poller after the console stops publishing.
const progressTTL = 5 * time.Minute

// progressEvent is the JSON shape published to the broadcast store.
type progressEvent struct {
	EventType string `json:"event_type"`
	Message   string `json:"message"`
	Percent   *int   `json:"percent,omitempty"`
}

// Console is a ceremony.Shell backed by a terminal: free text and
// integers are read line-buffered from in, secrets are read with echo
// disabled via term.ReadPassword. If broadcast is non-nil, every
// Progress call is additionally published under sessionKey so an
// out-of-process poller can observe ceremony progress.
type Console struct {
	in         *bufio.Reader
	out        io.Writer
	readPass   func() ([]byte, error)
	broadcast  kvstore.Store
	sessionKey string
}

// New returns a Console reading from in and writing prompts to out,
// with no progress broadcast.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:  bufio.NewReader(in),
		out: out,
		readPass: func() ([]byte, error) {
			return term.ReadPassword(int(syscall.Stdin))
		},
	}
}

// NewWithBroadcast returns a Console that also publishes each Progress
// event, JSON-encoded, to store under sessionKey.
func NewWithBroadcast(in io.Reader, out io.Writer, store kvstore.Store, sessionKey string) *Console {
	c := New(in, out)
	c.broadcast = store
	c.sessionKey = sessionKey
	return c
}

func (c *Console) Progress(message string, percent *int, eventType string) {
	if percent != nil {
		fmt.Fprintf(c.out, "[%s] %s (%d%%)\n", eventType, message, *percent)
	} else {
		fmt.Fprintf(c.out, "[%s] %s\n", eventType, message)
	}

	if c.broadcast == nil {
		return
	}
	payload, err := json.Marshal(progressEvent{EventType: eventType, Message: message, Percent: percent})
	if err != nil {
		return
	}
	_ = c.broadcast.Put(c.sessionKey, payload, progressTTL)
}

func (c *Console) ValidationResult(isValid bool, message, target string) {
	if isValid {
		return
	}
	fmt.Fprintf(c.out, "  invalid %s: %s\n", target, message)
}

func (c *Console) RequestText(prompt string, maxLength int) (string, error) {
	fmt.Fprintf(c.out, "%s: ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("shell: failed to read text: %w", err)
	}
	value := strings.TrimSpace(line)
	if runes := []rune(value); len(runes) > maxLength {
		value = string(runes[:maxLength])
	}
	return value, nil
}

func (c *Console) RequestSecretText(prompt string) (*sealedsecret.Bytes, error) {
	fmt.Fprintf(c.out, "%s: ", prompt)
	raw, err := c.readPass()
	fmt.Fprintln(c.out)
	if err != nil {
		return nil, fmt.Errorf("shell: failed to read secret: %w", err)
	}
	defer zero(raw)
	if len(raw) == 0 {
		return nil, ceremony.ErrEmptySecretInput
	}
	return sealedsecret.New(raw)
}

func (c *Console) RequestInteger(prompt string, min, max int) (int, error) {
	for {
		fmt.Fprintf(c.out, "%s [%d-%d]: ", prompt, min, max)
		line, err := c.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("shell: failed to read integer: %w", err)
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr != nil || n < min || n > max {
			fmt.Fprintf(c.out, "  enter a whole number between %d and %d\n", min, max)
			continue
		}
		return n, nil
	}
}

func (c *Console) RequestFilePath(prompt string, expectedExtension string) (string, error) {
	fmt.Fprintf(c.out, "%s (%s): ", prompt, expectedExtension)
	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("shell: failed to read path: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) RequestYesNo(prompt string) (bool, error) {
	for {
		fmt.Fprintf(c.out, "%s [y/n]: ", prompt)
		line, err := c.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("shell: failed to read confirmation: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(c.out, "  please answer y or n")
		}
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

var _ ceremony.Shell = (*Console)(nil)
