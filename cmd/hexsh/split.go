package main

import (
	"errors"
	"strings"
)

// splitLine tokenizes one prompt line: whitespace separates words, single
// quotes keep everything literal, double quotes allow backslash escapes. An
// unquoted trailing & asks for background execution; a quoted & is just a
// byte. There is no variable expansion and no globbing; what you type is
// what the child gets.
func splitLine(line string) (tokens []string, background bool, err error) {
	var (
		current strings.Builder
		started bool
	)
	emit := func() {
		if started {
			tokens = append(tokens, current.String())
			current.Reset()
			started = false
		}
	}

	for i := 0; i < len(line); i++ {
		if background {
			// Only whitespace may follow the background marker.
			if line[i] != ' ' && line[i] != '\t' {
				return nil, false, errors.New("unexpected input after &")
			}
			continue
		}

		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			emit()
		case c == '&':
			emit()
			background = true
		case c == '\'':
			started = true
			end := strings.IndexByte(line[i+1:], '\'')
			if end < 0 {
				return nil, false, errors.New("unterminated ' quote")
			}
			current.WriteString(line[i+1 : i+1+end])
			i += end + 1
		case c == '"':
			started = true
			i++
			closed := false
			for ; i < len(line); i++ {
				if line[i] == '\\' && i+1 < len(line) {
					i++
					current.WriteByte(line[i])
					continue
				}
				if line[i] == '"' {
					closed = true
					break
				}
				current.WriteByte(line[i])
			}
			if !closed {
				return nil, false, errors.New("unterminated \" quote")
			}
		case c == '\\' && i+1 < len(line):
			started = true
			i++
			current.WriteByte(line[i])
		default:
			started = true
			current.WriteByte(c)
		}
	}
	emit()

	if background && len(tokens) == 0 {
		return nil, false, errors.New("nothing to run in the background")
	}
	return tokens, background, nil
}
