package config

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shanesims/screenlink/internal/layout"
)

// ParseText parses the textual screens/links/options grammar from
// spec §6 into a Builder. Indentation is not counted in spaces (the
// grammar's sections are free-form indented); instead each line is
// classified by shape: a bare "name:" declares a screen (in the
// screens section) or starts a link block (in the links section), and
// "key = value" attaches to whichever screen/link-block is currently
// open. This is a hand-rolled scanner rather than a YAML/TOML
// unmarshal target because the grammar's own indentation rules don't
// map onto either format (see DESIGN.md).
func ParseText(data string) (*Builder, error) {
	b := NewBuilder()

	const (
		sectionNone = iota
		sectionScreens
		sectionLinks
		sectionOptions
	)
	section := sectionNone
	var currentLinkScreen string

	scanner := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := stripComment(raw)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "section:") {
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "section:"))
			switch name {
			case "screens":
				section = sectionScreens
			case "links":
				section = sectionLinks
				currentLinkScreen = ""
			case "options":
				section = sectionOptions
			default:
				return nil, fmt.Errorf("config: line %d: unknown section %q", lineNo, name)
			}
			continue
		}
		if trimmed == "end" {
			section = sectionNone
			currentLinkScreen = ""
			continue
		}

		switch section {
		case sectionScreens:
			if name, ok := strings.CutSuffix(trimmed, ":"); ok {
				b.AddScreen(strings.TrimSpace(name))
				continue
			}
			key, val, ok := splitAssignment(trimmed)
			if !ok {
				return nil, fmt.Errorf("config: line %d: expected \"name:\" or \"alias = name\" in screens section, got %q", lineNo, trimmed)
			}
			b.AddAlias(key, val)

		case sectionLinks:
			if name, ok := strings.CutSuffix(trimmed, ":"); ok {
				currentLinkScreen = strings.TrimSpace(name)
				continue
			}
			key, val, ok := splitAssignment(trimmed)
			if !ok {
				return nil, fmt.Errorf("config: line %d: expected \"name:\" or \"side = name\" in links section, got %q", lineNo, trimmed)
			}
			if currentLinkScreen == "" {
				return nil, fmt.Errorf("config: line %d: link side declared before any screen name", lineNo)
			}
			side, ok := layout.ParseSide(key)
			if !ok {
				return nil, fmt.Errorf("config: line %d: unknown link side %q", lineNo, key)
			}
			b.AddLink(currentLinkScreen, side, val)

		case sectionOptions:
			key, val, ok := splitAssignment(trimmed)
			if !ok {
				return nil, fmt.Errorf("config: line %d: expected \"key = value\" in options section, got %q", lineNo, trimmed)
			}
			if key == "bind_timeout" {
				secs, err := ParseBindTimeoutSeconds(val)
				if err != nil {
					return nil, fmt.Errorf("config: line %d: bind_timeout: %w", lineNo, err)
				}
				b.SetBindTimeout(time.Duration(secs) * time.Second)
				continue
			}
			b.SetOption(key, val)

		default:
			return nil, fmt.Errorf("config: line %d: content outside any section: %q", lineNo, trimmed)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}
	return b, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func splitAssignment(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:i])
	value = strings.TrimSpace(line[i+1:])
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

// ParseBindTimeoutSeconds parses the options section's bind_timeout
// value (seconds) before it's turned into a time.Duration by the
// caller.
func ParseBindTimeoutSeconds(s string) (int, error) {
	return strconv.Atoi(s)
}
