package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
)

// writeCompletionScript emits a completion script for the given shell,
// covering every flag the parser knows about, including the dynamically
// contributed extension flags.
func writeCompletionScript(w io.Writer, shell string, p *extension.Parser) error {
	var flags []string
	p.VisitAll(func(f *flag.Flag) {
		flags = append(flags, "--"+f.Name)
	})
	joined := strings.Join(flags, " ")

	switch strings.ToLower(shell) {
	case "bash":
		fmt.Fprintf(w, `# bash completion for %[1]s
_%[1]s_completions() {
    local cur
    cur="${COMP_WORDS[COMP_CWORD]}"
    COMPREPLY=($(compgen -W "%[2]s" -- "$cur"))
}
complete -o default -F _%[1]s_completions %[1]s
`, appName, joined)
		return nil

	case "zsh":
		fmt.Fprintf(w, `#compdef %[1]s
_%[1]s() {
    _arguments '*: :(%[2]s)'
}
compdef _%[1]s %[1]s
`, appName, joined)
		return nil

	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "CLI", "completion",
			fmt.Sprintf("unsupported completion shell %q, want bash or zsh", shell))
	}
}
