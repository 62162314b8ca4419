package utils

type colors struct {
	c map[string]int
}

var Colors = colors{
	c: map[string]int{
		"Mint":       0x3ddc97,
		"Ocean":      0x2e86de,
		"Orchid":     0xc56cf0,
		"Tomato":     0xee5253,
		"Marigold":   0xfeca57,
		"Slate gray": 0x576574,
	},
}

// Ok returns the color code for success messages and active playback
func (c colors) Ok() int {
	return c.c["Mint"]
}

// Info returns the color code for informational messages
func (c colors) Info() int {
	return c.c["Ocean"]
}

// Fancy returns the color code for highlighted messages
func (c colors) Fancy() int {
	return c.c["Orchid"]
}

// Error returns the color code for error messages
func (c colors) Error() int {
	return c.c["Tomato"]
}

// Warning returns the color code for warnings and paused playback
func (c colors) Warning() int {
	return c.c["Marigold"]
}

// Muted returns the color code for idle or stopped players
func (c colors) Muted() int {
	return c.c["Slate gray"]
}
