package units

import "fmt"

// FullLabel returns "<name> [<unit>]" for axis labels. Arrays without a
// name fall back to the unit alone.
func FullLabel(a *Array) string {
	if a.Name() == "" {
		return fmt.Sprintf("[%s]", a.Unit().Symbol)
	}
	return fmt.Sprintf("%s [%s]", a.Name(), a.Unit().Symbol)
}
