// Package repl implements the line-oriented command loop the executables
// expose, addressed per client.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Trigger for the help meta-command that prints out all help strings.
const TriggerHelpMetacommand = ".help"

// String prepended to any error before it is sent to the output writer.
const ErrorPrependStr = "ERROR: "

var (
	ErrOverlappingCommands = errors.New("found overlapping commands")
	ErrCommandNotFound     = errors.New("command not found")
)

// ReplCommand runs one command given the full input line.
type ReplCommand func(payload string, config *REPLConfig) (output string, err error)

// REPL maps command triggers to their actions and help strings.
type REPL struct {
	commands map[string]ReplCommand
	help     map[string]string
}

// REPLConfig carries per-client state into commands.
type REPLConfig struct {
	clientId uuid.UUID
}

// GetAddr returns the client id this session belongs to.
func (config *REPLConfig) GetAddr() uuid.UUID {
	return config.clientId
}

// NewRepl constructs an empty REPL.
func NewRepl() *REPL {
	return &REPL{
		commands: make(map[string]ReplCommand),
		help:     make(map[string]string),
	}
}

// AddCommand registers a command with its help string, overwriting any
// previous command on the same trigger. The help metacommand cannot be
// overridden.
func (r *REPL) AddCommand(trigger string, action ReplCommand, help string) {
	if trigger == TriggerHelpMetacommand {
		return
	}
	r.commands[trigger] = action
	r.help[trigger] = help
}

// GetCommands returns the trigger-to-command map.
func (r *REPL) GetCommands() map[string]ReplCommand {
	return r.commands
}

// CombineRepls merges the given REPLs into one, erroring if any two share
// a trigger. No REPLs yields an empty REPL.
func CombineRepls(repls []*REPL) (*REPL, error) {
	combined := NewRepl()
	for _, r := range repls {
		for trigger, action := range r.commands {
			if _, taken := combined.commands[trigger]; taken {
				return nil, ErrOverlappingCommands
			}
			combined.AddCommand(trigger, action, r.help[trigger])
		}
	}
	return combined, nil
}

// HelpString returns all commands' help strings, one per line.
func (r *REPL) HelpString() string {
	triggers := make([]string, 0, len(r.help))
	for trigger := range r.help {
		triggers = append(triggers, trigger)
	}
	sort.Strings(triggers)
	var sb strings.Builder
	for _, trigger := range triggers {
		fmt.Fprintf(&sb, "%s: %s\n", trigger, r.help[trigger])
	}
	return sb.String()
}

// Run reads lines from input and dispatches them until EOF. Input and
// output default to stdin and stdout when nil.
func (r *REPL) Run(clientId uuid.UUID, prompt string, input io.Reader, output io.Writer) {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}
	config := &REPLConfig{clientId: clientId}
	fmt.Fprintf(output, "Welcome to %s! Type '%s' to see the list of available commands.\n", strings.TrimSpace(prompt), TriggerHelpMetacommand)
	io.WriteString(output, prompt)

	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		payload := scanner.Text()
		fields := strings.Fields(payload)
		if len(fields) == 0 {
			io.WriteString(output, prompt)
			continue
		}
		trigger := fields[0]
		if trigger == TriggerHelpMetacommand {
			io.WriteString(output, r.HelpString())
			io.WriteString(output, prompt)
			continue
		}
		command, exists := r.commands[trigger]
		if !exists {
			fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, ErrCommandNotFound)
			io.WriteString(output, prompt)
			continue
		}
		result, err := command(payload, config)
		if err != nil {
			fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, err)
		} else if len(result) != 0 {
			if !strings.HasSuffix(result, "\n") {
				result += "\n"
			}
			io.WriteString(output, result)
		}
		io.WriteString(output, prompt)
	}
	io.WriteString(output, "\n")
}
