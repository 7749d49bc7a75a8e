package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"leadflow/internal/services"
)

// Converter runs an external command that turns the Markdown artifact into
// the document sent to the lead. Command tokens {input} and {outdir} are
// substituted; when {input} is absent the input path is appended.
type Converter struct {
	Command []string
	Timeout time.Duration
}

// Enabled reports whether a command is configured.
func (c Converter) Enabled() bool {
	return len(c.Command) > 0 && strings.TrimSpace(c.Command[0]) != ""
}

// Binary returns the executable name.
func (c Converter) Binary() string {
	if !c.Enabled() {
		return ""
	}
	return strings.TrimSpace(c.Command[0])
}

func (c Converter) args(input, outdir string) []string {
	args := make([]string, 0, len(c.Command))
	sawInput := false
	for _, token := range c.Command[1:] {
		if strings.Contains(token, "{input}") {
			sawInput = true
		}
		token = strings.ReplaceAll(token, "{input}", input)
		token = strings.ReplaceAll(token, "{outdir}", outdir)
		args = append(args, token)
	}
	if !sawInput {
		args = append(args, input)
	}
	return args
}

// Convert runs the command and returns the produced file: the first file in
// outdir sharing the input's stem with a different extension.
func (c Converter) Convert(ctx context.Context, input, outdir string) (string, error) {
	binary := c.Binary()
	if binary == "" {
		return "", services.Wrap(services.ErrConfiguration, "render", "convert", "converter command not configured", nil)
	}
	if _, err := exec.LookPath(binary); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "render", "convert", fmt.Sprintf("binary %q not found", binary), err)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, c.args(input, outdir)...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "render", "convert", fmt.Sprintf("%s timed out", binary), ctx.Err())
		}
		return "", services.Wrap(services.ErrExternalTool, "render", "convert",
			fmt.Sprintf("%s failed: %s", binary, strings.TrimSpace(string(output))), err)
	}

	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	matches, err := filepath.Glob(filepath.Join(outdir, globEscape(stem)+".*"))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "render", "convert", "scan converter output", err)
	}
	for _, match := range matches {
		if match == input || strings.HasSuffix(match, ".tmp") {
			continue
		}
		if info, err := os.Stat(match); err == nil && !info.IsDir() {
			return match, nil
		}
	}
	return "", services.Wrap(services.ErrExternalTool, "render", "convert",
		fmt.Sprintf("%s produced no output for %s", binary, filepath.Base(input)), nil)
}

func globEscape(value string) string {
	return strings.NewReplacer("*", "\\*", "?", "\\?", "[", "\\[").Replace(value)
}
