package bio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseNexus reads the MATRIX of the first DATA or CHARACTERS block of
// a NEXUS file. Both sequential and interleaved matrices are
// supported; rows with the same taxon name are concatenated. Quoted
// taxon names and bracket comments are handled.
func ParseNexus(rd io.Reader) (Sequences, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	header := false
	inBlock := false
	inMatrix := false
	comment := 0
	index := make(map[string]int)
	var seqs Sequences

	for scanner.Scan() {
		line := stripComments(scanner.Text(), &comment)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !header {
			if !strings.EqualFold(strings.Fields(trimmed)[0], "#NEXUS") {
				return nil, errors.New("missing #NEXUS header")
			}
			header = true
			continue
		}
		upper := strings.ToUpper(trimmed)
		switch {
		case inMatrix:
			end := strings.HasSuffix(trimmed, ";")
			trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
			if trimmed != "" {
				name, data, err := matrixRow(trimmed)
				if err != nil {
					return nil, err
				}
				i, ok := index[name]
				if !ok {
					i = len(seqs)
					index[name] = i
					seqs = append(seqs, Sequence{Name: name})
				}
				seqs[i].Sequence += strings.ToUpper(data)
			}
			if end {
				return seqs, nil
			}
		case strings.HasPrefix(upper, "BEGIN DATA") || strings.HasPrefix(upper, "BEGIN CHARACTERS"):
			inBlock = true
		case inBlock && strings.HasPrefix(upper, "MATRIX"):
			inMatrix = true
			rest := strings.TrimSpace(trimmed[len("MATRIX"):])
			if rest != "" {
				return nil, errors.New("matrix data should start on a new line")
			}
		case inBlock && strings.HasPrefix(upper, "END"):
			inBlock = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, errors.New("missing #NEXUS header")
	}
	if inMatrix {
		return nil, errors.New("unterminated matrix")
	}
	return nil, errors.New("no DATA or CHARACTERS matrix found")
}

// stripComments removes bracket comments; comment keeps the nesting
// level between lines.
func stripComments(line string, comment *int) string {
	if *comment == 0 && strings.IndexByte(line, '[') < 0 {
		return line
	}
	var sb strings.Builder
	for _, r := range line {
		switch {
		case r == '[':
			*comment++
		case r == ']' && *comment > 0:
			*comment--
		case *comment == 0:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// matrixRow splits a matrix line into the taxon name and the data.
func matrixRow(line string) (name, data string, err error) {
	if line[0] == '\'' || line[0] == '"' {
		end := strings.IndexByte(line[1:], line[0])
		if end < 0 {
			return "", "", fmt.Errorf("unterminated quote in %q", line)
		}
		name = line[1 : end+1]
		line = line[end+2:]
	} else {
		fields := strings.Fields(line)
		name = fields[0]
		line = line[len(name):]
	}
	data = strings.Join(strings.Fields(line), "")
	return name, data, nil
}
