package queryir

import "strings"

// Flags is the set of boolean session flags a compiler or the actionable
// engine may consult.
type Flags uint16

const (
	NoGroup Flags = 1 << iota
	Extended
	CleanArea
	DrainLiquids
	Overwrite
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{NoGroup, "no-group"},
	{Extended, "extended"},
	{CleanArea, "clean-area"},
	{DrainLiquids, "drain-liquids"},
	{Overwrite, "overwrite"},
}

func (f Flags) Has(flag Flags) bool { return f&flag == flag }
func (f Flags) With(flag Flags) Flags { return f | flag }
func (f Flags) Without(flag Flags) Flags { return f &^ flag }

func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ",")
}
