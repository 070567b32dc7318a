package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AA00")).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAAA")).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)
)

// Usage is the one-line invocation summary.
const Usage = "[flags] [<source>]"

// StyledHelpPrinter creates a custom help printer with Lipgloss styling.
// Flags are listed per group in declaration order; ungrouped flags come first.
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		// Title and description
		sb.WriteString(helpTitleStyle.Render("fxplay 🎬"))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render(ctx.Model.Help))
		sb.WriteString("\n")

		// Usage
		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(fmt.Sprintf("%s %s", ctx.Model.Name, Usage))
		sb.WriteString("\n")

		// Arguments section
		args := getArguments(ctx)
		if len(args) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			for _, arg := range args {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(arg.name))
				if arg.help != "" {
					sb.WriteString("  ")
					sb.WriteString(arg.help)
				}
				sb.WriteString("\n")
			}
		}

		// Flags sections
		for _, section := range getFlagSections(ctx) {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render(section.title + ":"))
			sb.WriteString("\n")
			for _, flag := range section.flags {
				sb.WriteString("  ")
				sb.WriteString(helpFlagStyle.Render(flag.flags))
				if flag.help != "" {
					sb.WriteString("  ")
					sb.WriteString(flag.help)
				}
				if flag.defaultVal != "" {
					sb.WriteString(" ")
					sb.WriteString(helpDefaultStyle.Render("(default: " + flag.defaultVal + ")"))
				}
				sb.WriteString("\n")
			}
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
}

type flagSection struct {
	title string
	flags []flag
}

func getArguments(ctx *kong.Context) []argument {
	var args []argument

	// Parse arguments from the model
	for _, arg := range ctx.Model.Node.Positional {
		name := arg.Summary()
		help := arg.Help
		args = append(args, argument{name: name, help: help})
	}

	return args
}

func getFlagSections(ctx *kong.Context) []flagSection {
	general := flagSection{title: "Flags"}

	// Always include help flag
	general.flags = append(general.flags, flag{
		flags: "-h, --help",
		help:  "Show context-sensitive help.",
	})

	var grouped []flagSection
	index := map[string]int{}

	// Parse flags from the model
	for _, f := range ctx.Model.Node.Flags {
		if f.Name == "help" || f.Hidden {
			continue // Already added
		}

		if f.Group == nil {
			general.flags = append(general.flags, describeFlag(f))
			continue
		}
		i, ok := index[f.Group.Title]
		if !ok {
			i = len(grouped)
			index[f.Group.Title] = i
			grouped = append(grouped, flagSection{title: f.Group.Title})
		}
		grouped[i].flags = append(grouped[i].flags, describeFlag(f))
	}

	return append([]flagSection{general}, grouped...)
}

func describeFlag(f *kong.Flag) flag {
	flagStr := ""
	if f.Short != 0 {
		flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
	} else {
		flagStr = fmt.Sprintf("--%s", f.Name)
	}

	if !f.IsBool() {
		flagStr += "=" + f.FormatPlaceHolder()
	}

	return flag{
		flags:      flagStr,
		help:       f.Help,
		defaultVal: f.Default,
	}
}
