package shared

import "strings"

// CLIHelp trims the indentation and surrounding blank lines from a
// multi-line help string written inside a Go raw string literal.
func CLIHelp(s string) string {
	return strings.TrimSpace(dedent(s))
}

// CLIExample formats a block of example invocations, indenting every line
// by two spaces the way cobra prints its own examples.
func CLIExample(s string) string {
	lines := strings.Split(strings.TrimSpace(dedent(s)), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}

// dedent removes the longest run of leading tabs shared by every non-blank
// line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	prefix := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, "\t"))
		if prefix == -1 || n < prefix {
			prefix = n
		}
	}
	if prefix <= 0 {
		return s
	}
	for i, line := range lines {
		if len(line) >= prefix {
			lines[i] = line[prefix:]
		} else {
			lines[i] = strings.TrimLeft(line, "\t")
		}
	}
	return strings.Join(lines, "\n")
}
