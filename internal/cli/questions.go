package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// FillInitOptionsInteractive prompts the user to confirm or override defaults.
// An empty answer, or end of input, keeps the current value.
func FillInitOptionsInteractive(in io.Reader, out io.Writer, opts *InitOptions) {
	reader := bufio.NewReader(in)
	ask := func(prompt string, value *string) {
		fmt.Fprintf(out, "%s [%s]: ", prompt, *value)
		if s, _ := reader.ReadString('\n'); strings.TrimSpace(s) != "" {
			*value = strings.TrimSpace(s)
		}
	}

	ask("Directory name", &opts.Name)
	if opts.Title == "" {
		opts.Title = opts.Name
	}
	ask("Site title", &opts.Title)
	ask("Description", &opts.Description)
	ask("Posts directory", &opts.SrcDir)
	ask("Build directory", &opts.BuildDir)
}
