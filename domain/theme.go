package domain

const (
	// LightBackground is the page background while the light flag is set.
	LightBackground = "black"
	// DarkBackground is the page background for the default theme. It is also
	// the neutral colour a board falls back to after logout.
	DarkBackground = "rgb(236, 236, 236)"
)

// Theme is the presentation value derived from the board's theme flag.
type Theme struct {
	Light      bool   `json:"light"`
	Background string `json:"background"`
}

// ThemeFor maps the theme flag to its presentation value. Each flag value has
// exactly one background.
func ThemeFor(light bool) Theme {
	if light {
		return Theme{Light: true, Background: LightBackground}
	}
	return Theme{Light: false, Background: DarkBackground}
}
