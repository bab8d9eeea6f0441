// Package loader reads the pilot's CSV exports: sequence event files, the
// Sequence States mapping table, and parameter values. Malformed rows are
// dropped and counted, never fatal.
package loader

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/internal/timeparse"
)

const readBufferSize = 256 * 1024

// Parser parses sequence event CSV files at the byte level, without
// strings.Split.
type Parser struct {
	delimiter byte
}

// NewParser creates a parser for comma-delimited exports.
func NewParser() *Parser {
	return &Parser{delimiter: ','}
}

// ParseEvents reads one sequence export. Rows with an unparseable
// timestamp or a non-numeric code are dropped; the count of dropped rows
// is returned alongside the events.
func (p *Parser) ParseEvents(r io.Reader) ([]model.Event, int, error) {
	reader := bufio.NewReaderSize(r, readBufferSize)

	headerLine, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	if len(trimLineEnding(headerLine)) == 0 {
		return nil, 0, ErrInvalidCSV
	}

	columns := p.parseLine(trimLineEnding(headerLine))
	colMap := buildColumnMap(columns)

	tsIdx, ok := colMap["timestamp"]
	if !ok {
		return nil, 0, ErrMissingColumn
	}
	codeIdx, ok := colMap["code"]
	if !ok {
		return nil, 0, ErrMissingColumn
	}
	msgIdx, hasMsg := colMap["message"] // optional

	var events []model.Event
	dropped := 0

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, 0, err
		}
		if len(line) == 0 && err == io.EOF {
			break
		}

		line = trimLineEnding(line)
		if len(line) == 0 {
			if err == io.EOF {
				break
			}
			continue
		}

		fields := p.parseLine(line)
		if len(fields) <= tsIdx || len(fields) <= codeIdx {
			dropped++
			if err == io.EOF {
				break
			}
			continue
		}

		ts, perr := timeparse.Parse(fields[tsIdx])
		if perr != nil {
			dropped++
			if err == io.EOF {
				break
			}
			continue
		}

		code, ok := parseCode(fields[codeIdx])
		if !ok {
			dropped++
			if err == io.EOF {
				break
			}
			continue
		}

		ev := model.Event{Timestamp: ts, Code: code}
		if hasMsg && msgIdx < len(fields) {
			ev.Message = string(fields[msgIdx])
		}
		events = append(events, ev)

		if err == io.EOF {
			break
		}
	}

	return events, dropped, nil
}

// parseLine splits a CSV line with byte-level scanning, handling quoted
// fields with embedded delimiters and escaped quotes.
func (p *Parser) parseLine(line []byte) [][]byte {
	if len(line) == 0 {
		return nil
	}

	fields := make([][]byte, 0, 8)
	start := 0
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '"' {
			if !inQuotes {
				inQuotes = true
			} else if i+1 < len(line) && line[i+1] == '"' {
				i++ // escaped quote
			} else {
				inQuotes = false
			}
		} else if c == p.delimiter && !inQuotes {
			fields = append(fields, unquoteField(line[start:i]))
			start = i + 1
		}
	}
	fields = append(fields, unquoteField(line[start:]))
	return fields
}

// unquoteField removes surrounding quotes and unescapes embedded quotes.
func unquoteField(field []byte) []byte {
	if len(field) < 2 || field[0] != '"' || field[len(field)-1] != '"' {
		return field
	}
	field = field[1 : len(field)-1]
	result := make([]byte, 0, len(field))
	for i := 0; i < len(field); i++ {
		if field[i] == '"' && i+1 < len(field) && field[i+1] == '"' {
			result = append(result, '"')
			i++
		} else {
			result = append(result, field[i])
		}
	}
	return result
}

// buildColumnMap maps lowercased column names to indices, so headers match
// regardless of export casing.
func buildColumnMap(columns [][]byte) map[string]int {
	m := make(map[string]int, len(columns))
	for i, col := range columns {
		m[strings.ToLower(strings.TrimSpace(string(col)))] = i
	}
	return m
}

// parseCode coerces a raw code field to an integer state ID. Exports
// sometimes render codes as floats ("17.0").
func parseCode(field []byte) (int64, bool) {
	s := strings.TrimSpace(string(field))
	if s == "" {
		return 0, false
	}
	if code, err := strconv.ParseInt(s, 10, 64); err == nil {
		return code, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// trimLineEnding removes trailing \n and \r characters.
func trimLineEnding(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
