package puzzle

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
)

// GridCells is the number of cells in the selection grid (3x3).
const GridCells = 9

var glyphs = []string{"circle", "square", "triangle", "star", "cross", "diamond"}

// BuildSelection assembles the selection processor.
func BuildSelection(in challenge.BuildInput) (challenge.Impl, error) {
	return challenge.NewProcessor(in, SelectionGenerator{}, Deliverer{Type: challenge.TypeSelection}, SelectionAnswer), nil
}

// SelectionGenerator marks a few grid cells with the prompt glyph and fills
// the rest with other glyphs.
//
// The prompt and the cells go to the client as plain names, so any program
// can work out the answer from the acknowledgement. Selection only shows that
// the client ran the exchange; hosts that need a picture puzzle override the
// Generator and draw the grid themselves.
type SelectionGenerator struct{}

func (SelectionGenerator) Generate(in *challenge.GenerateInput) (*challenge.Challenge, error) {
	n := min(max(in.Config.Length, 1), GridCells-1)

	targets, err := internal.RandomPerm(GridCells, n)
	if err != nil {
		return nil, err
	}
	slices.Sort(targets)

	promptIdx, err := internal.RandomInt(len(glyphs))
	if err != nil {
		return nil, err
	}
	prompt := glyphs[promptIdx]

	cells := make([]string, GridCells)
	for i := range cells {
		if slices.Contains(targets, i) {
			cells[i] = prompt
			continue
		}

		j, err := internal.RandomInt(len(glyphs) - 1)
		if err != nil {
			return nil, err
		}
		if j >= promptIdx {
			j++
		}
		cells[i] = glyphs[j]
	}

	code := joinCells(targets)

	return newChallenge(in, func(string) string { return code }, map[string]string{
		"prompt": prompt,
		"cells":  strings.Join(cells, ","),
	})
}

func joinCells(cells []int) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// SelectionAnswer sorts and deduplicates the submitted cell indexes.
func SelectionAnswer(r *http.Request, cfg *challenge.TypeConfig, rec *challenge.Stored) string {
	raw := challenge.FormAnswer(r, cfg, rec)
	if raw == "" {
		return ""
	}

	var cells []int
	for _, part := range splitAnswer(raw) {
		c, err := strconv.Atoi(part)
		if err != nil || c < 0 || c >= GridCells {
			return invalidAnswer
		}
		cells = append(cells, c)
	}

	if len(cells) == 0 {
		return invalidAnswer
	}

	slices.Sort(cells)
	return joinCells(slices.Compact(cells))
}
