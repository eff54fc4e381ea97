package ui

// ColorReset returns the reset sequence of the current theme.
func ColorReset() string { return GetCurrentTheme().Reset }

// ColorRed returns the error colour.
func ColorRed() string { return GetCurrentTheme().Error }

// ColorGreen returns the success colour.
func ColorGreen() string { return GetCurrentTheme().Success }

// ColorYellow returns the warning colour.
func ColorYellow() string { return GetCurrentTheme().Warning }

// ColorBlue returns the primary colour.
func ColorBlue() string { return GetCurrentTheme().Primary }

// ColorMagenta returns the info colour.
func ColorMagenta() string { return GetCurrentTheme().Info }

// ColorCyan returns the secondary colour.
func ColorCyan() string { return GetCurrentTheme().Secondary }

// ColorBold returns the bold sequence.
func ColorBold() string { return GetCurrentTheme().Bold }

// MethodColor returns the colour used for a sampling method's rows and
// labels, keyed by its flag name. Unknown methods get the primary colour.
func MethodColor(method string) string {
	t := GetCurrentTheme()
	switch method {
	case "pure":
		return t.Warning
	case "lhs":
		return t.Info
	case "ortho":
		return t.Success
	default:
		return t.Primary
	}
}

// Paint wraps s in color and the current reset sequence. With the NoColor
// theme it returns s unchanged.
func Paint(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + ColorReset()
}

// Colors implements the errors package's ColorProvider on the current theme.
type Colors struct{}

// Yellow returns the warning colour.
func (Colors) Yellow() string { return ColorYellow() }

// Reset returns the reset sequence.
func (Colors) Reset() string { return ColorReset() }
