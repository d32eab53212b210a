package banner

import (
	"github.com/charmbracelet/lipgloss"

	"perftest/internal/tui/styles"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
 ___  ___  ___  ___  _____  ___  ___  _____
| _ \| __|| _ \| __||_   _|| __|/ __||_   _|
|  _/| _| |   /| _|   | |  | _| \__ \  | |
|_|  |___||_|_\|_|    |_|  |___||___/  |_|  `

	return "\n" + style.Render(ascii) + "\n"
}
