package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format is a tree file format.
type Format int

const (
	Newick Format = iota
	Nexus
)

func (f Format) String() string {
	switch f {
	case Newick:
		return "newick"
	case Nexus:
		return "nexus"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat converts format name to Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "newick", "nwk", "":
		return Newick, nil
	case "nexus", "nex":
		return Nexus, nil
	}
	return Newick, fmt.Errorf("unknown tree format %q", s)
}

// Read reads a tree in the given format.
func Read(rd io.Reader, format Format) (*Tree, error) {
	switch format {
	case Newick:
		return ParseNewick(rd)
	case Nexus:
		return ParseNexus(rd)
	}
	return nil, fmt.Errorf("unsupported tree format: %v", format)
}

// nexusStatements returns the statements (separated by ';') of the
// first block with the given name. Comments are removed.
func nexusStatements(rd io.Reader, block string) ([]string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	depth := 0
	for scanner.Scan() {
		for _, r := range scanner.Text() {
			switch {
			case r == '[':
				depth++
			case r == ']' && depth > 0:
				depth--
			case depth == 0:
				sb.WriteRune(r)
			}
		}
		sb.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	text := sb.String()
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "#NEXUS") {
		return nil, errors.New("missing #NEXUS header")
	}

	var stmts []string
	inBlock := false
	for _, stmt := range strings.Split(text, ";") {
		stmt = strings.TrimSpace(stmt)
		fields := strings.Fields(stmt)
		if len(fields) == 0 {
			continue
		}
		keyword := strings.ToUpper(fields[0])
		if keyword == "#NEXUS" && len(fields) > 1 {
			stmt = strings.TrimSpace(stmt[len(fields[0]):])
			fields = fields[1:]
			keyword = strings.ToUpper(fields[0])
		}
		switch {
		case keyword == "BEGIN" && len(fields) > 1 && strings.EqualFold(fields[1], block):
			inBlock = true
		case keyword == "END" || keyword == "ENDBLOCK":
			if inBlock {
				return stmts, nil
			}
		case inBlock:
			stmts = append(stmts, stmt)
		}
	}
	if !inBlock {
		return nil, fmt.Errorf("no %s block found", block)
	}
	return stmts, nil
}

// ParseNexus reads the first tree from the TREES block of a nexus
// file. Leaf names are replaced using the TRANSLATE table if present.
func ParseNexus(rd io.Reader) (*Tree, error) {
	stmts, err := nexusStatements(rd, "TREES")
	if err != nil {
		return nil, err
	}

	translate := make(map[string]string)
	for _, stmt := range stmts {
		fields := strings.Fields(stmt)
		switch strings.ToUpper(fields[0]) {
		case "TRANSLATE":
			body := strings.TrimSpace(stmt[len(fields[0]):])
			for _, pair := range strings.Split(body, ",") {
				kv := strings.Fields(pair)
				if len(kv) != 2 {
					return nil, fmt.Errorf("bad translate entry %q", pair)
				}
				translate[kv[0]] = strings.Trim(kv[1], "'\"")
			}
		case "TREE", "UTREE":
			eq := strings.IndexByte(stmt, '=')
			if eq < 0 {
				return nil, errors.New("tree statement without '='")
			}
			t, err := ParseNewick(strings.NewReader(stmt[eq+1:] + ";"))
			if err != nil {
				return nil, err
			}
			if len(translate) > 0 {
				for leaf := range t.Terminals() {
					if name, ok := translate[leaf.Name]; ok {
						leaf.Name = name
					}
				}
			}
			return t, nil
		}
	}
	return nil, errors.New("no tree found in TREES block")
}
