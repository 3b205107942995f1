package dagrs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// commandVarPattern matches ${input.N} and ${env.KEY} placeholders in a
// Command action's shell string, using a brace-style regexp
// (`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`) narrowed to the two placeholder
// shapes a Command action needs instead of a generic variable map — the
// original engine's run_sh concatenates input values into the command
// line the same way, just without a named placeholder syntax.
var commandVarPattern = regexp.MustCompile(`\$\{(input\.(\d+)|env\.([A-Za-z_][A-Za-z0-9_]*))\}`)

// CommandAction runs a shell command string: stdout becomes the output
// payload, and a non-zero exit becomes a RunError. The shell string may
// reference ${input.N} (the Nth predecessor packet, formatted with %v)
// and ${env.KEY} (an environment lookup); expansion happens before the
// shell is invoked, adding the original engine's input-interpolation
// behavior on top of plain command execution.
type CommandAction struct {
	// Shell is the command template, e.g. "echo ${input.0} >> ${env.logfile}".
	Shell string
	// ShellPath is the interpreter used to run Shell. Defaults to "sh".
	ShellPath string
}

// NewCommandAction builds a CommandAction running shell through "sh -c".
func NewCommandAction(shell string) *CommandAction {
	return &CommandAction{Shell: shell}
}

// Run implements Action. The blocking exec.Cmd.Run call happens on this
// node's own goroutine, keeping a blocking external process off the
// scheduler's other goroutines so it never blocks any other node's
// channel operations.
func (c *CommandAction) Run(ctx context.Context, input Input, env *Env) (Output, error) {
	shellPath := c.ShellPath
	if shellPath == "" {
		shellPath = "sh"
	}

	expanded := expandCommandTemplate(c.Shell, input, env)

	cmd := exec.CommandContext(ctx, shellPath, "-c", expanded)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return Output{}, ctx.Err()
	}
	if runErr != nil {
		return Output{}, WrapRunError(
			fmt.Sprintf("command %q failed: %s", expanded, strings.TrimSpace(stderr.String())),
			runErr,
		)
	}

	return NewOutput(strings.TrimRight(stdout.String(), "\n")), nil
}

// expandCommandTemplate replaces every ${input.N}/${env.KEY} placeholder
// in shell. An out-of-range input index or a missing env key expands to
// the empty string rather than erroring, matching the rest of the
// engine's "missing means empty/none, never abort" convention.
func expandCommandTemplate(shell string, input Input, env *Env) string {
	return commandVarPattern.ReplaceAllStringFunc(shell, func(match string) string {
		groups := commandVarPattern.FindStringSubmatch(match)
		switch {
		case groups[2] != "":
			idx, err := strconv.Atoi(groups[2])
			if err != nil || idx < 0 || idx >= input.Len() {
				return ""
			}
			return fmt.Sprintf("%v", input.At(idx).Value())
		case groups[3] != "":
			v, ok := env.Get(groups[3])
			if !ok {
				return ""
			}
			return fmt.Sprintf("%v", v)
		default:
			return match
		}
	})
}
