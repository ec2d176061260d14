package spreadsheet

import (
	"strconv"
)

// bounds of the addressable universe
const (
	MaxRows = 16384
	MaxCols = 16384
)

const (
	letters          = 26
	maxLetterCount   = 3
	maxDigitCount    = 5
	maxPositionBytes = maxLetterCount + maxDigitCount
)

// Position is a zero-based cell address
type Position struct {
	Row int
	Col int
}

// NonePosition denotes an invalid or absent address. it is never valid.
var NonePosition = Position{Row: -1, Col: -1}

// Size is the printable bounding box of a sheet
type Size struct {
	Rows int
	Cols int
}

// IsValid reports whether the position is inside the addressable universe
func (p Position) IsValid() bool {
	return p.Row >= 0 && p.Row < MaxRows && p.Col >= 0 && p.Col < MaxCols
}

// Less orders positions row-major
func (p Position) Less(other Position) bool {
	if p.Row != other.Row {
		return p.Row < other.Row
	}
	return p.Col < other.Col
}

// String renders the position in A1 notation. invalid positions render as
// an empty string.
func (p Position) String() string {
	if !p.IsValid() {
		return ""
	}

	// bijective base-26: there is no zero letter, so each step borrows one
	buf := make([]byte, 0, maxPositionBytes)
	for col := p.Col + 1; col > 0; col = (col - 1) / letters {
		buf = append(buf, byte('A'+(col-1)%letters))
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(strconv.AppendInt(buf, int64(p.Row+1), 10))
}

// ParsePosition parses an A1-style address such as "B12". it returns
// NonePosition for anything malformed or out of bounds. only uppercase
// letters are accepted.
func ParsePosition(text string) Position {
	letterEnd := 0
	for letterEnd < len(text) && isLetter(text[letterEnd]) {
		letterEnd++
	}

	letterRun := text[:letterEnd]
	digitRun := text[letterEnd:]
	if len(letterRun) == 0 || len(digitRun) == 0 {
		return NonePosition
	}
	if len(letterRun) > maxLetterCount || len(digitRun) > maxDigitCount {
		return NonePosition
	}

	for i := 0; i < len(letterRun); i++ {
		if letterRun[i] < 'A' || letterRun[i] > 'Z' {
			return NonePosition
		}
	}

	row := 0
	for i := 0; i < len(digitRun); i++ {
		ch := digitRun[i]
		if ch < '0' || ch > '9' {
			return NonePosition
		}
		row = row*10 + int(ch-'0')
	}

	col := 0
	for i := 0; i < len(letterRun); i++ {
		col = col*letters + int(letterRun[i]-'A') + 1
	}

	pos := Position{Row: row - 1, Col: col - 1}
	if !pos.IsValid() {
		return NonePosition
	}
	return pos
}

// isLetter matches both cases so that lowercase letters end up in the letter
// run and get rejected there rather than in the digit run
func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
