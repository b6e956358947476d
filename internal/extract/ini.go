package extract

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// iniText flattens a sectioned key-value file into plain text: each section
// header on its own line, followed by key = value lines, with a blank line
// between sections.
func iniText(path string) (string, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return "", fmt.Errorf("parsing ini %s: %w", path, err)
	}

	var lines []string
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection && len(section.Keys()) == 0 {
			continue
		}

		lines = append(lines, fmt.Sprintf("[%s]", section.Name()))
		for _, key := range section.Keys() {
			lines = append(lines, fmt.Sprintf("%s = %s", key.Name(), key.Value()))
		}
		lines = append(lines, "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
