package loader

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/pkg/source"
)

// StatesFile is the static mapping table shipped with every export set.
const StatesFile = "Sequence States.csv"

// LoadStates reads the Sequence States mapping from the source.
func LoadStates(ctx context.Context, src source.Source) (*model.StateMapping, error) {
	rc, err := src.Open(ctx, StatesFile)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", StatesFile, err)
	}
	defer rc.Close()

	mapping, _, err := NewParser().ParseStates(rc)
	if err != nil {
		return nil, fmt.Errorf("loader: parse %s: %w", StatesFile, err)
	}
	return mapping, nil
}

// ParseStates reads a state mapping table with columns "State ID",
// "State Type" and "Sequence Name". Rows with a non-numeric State ID are
// dropped and counted; duplicate IDs keep the last row.
func (p *Parser) ParseStates(r io.Reader) (*model.StateMapping, int, error) {
	reader := bufio.NewReaderSize(r, readBufferSize)

	headerLine, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	if len(trimLineEnding(headerLine)) == 0 {
		return nil, 0, ErrInvalidCSV
	}

	colMap := buildColumnMap(p.parseLine(trimLineEnding(headerLine)))
	idIdx, ok := colMap["state id"]
	if !ok {
		return nil, 0, ErrMissingColumn
	}
	typeIdx, ok := colMap["state type"]
	if !ok {
		return nil, 0, ErrMissingColumn
	}
	nameIdx, hasName := colMap["sequence name"]

	var states []model.State
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
		if len(line) > 0 {
			fields := p.parseLine(line)
			if len(fields) <= idIdx || len(fields) <= typeIdx {
				dropped++
			} else if id, ok := parseCode(fields[idIdx]); !ok {
				dropped++
			} else {
				st := model.State{ID: id, Type: string(fields[typeIdx])}
				if hasName && nameIdx < len(fields) {
					st.Name = string(fields[nameIdx])
				}
				states = append(states, st)
			}
		}

		if err == io.EOF {
			break
		}
	}

	return model.NewStateMapping(states), dropped, nil
}
