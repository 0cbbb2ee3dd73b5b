package render

import "fmt"

// Page scripts shared by the scrolling components.
const (
	ScrollHeightScript = "document.body.scrollHeight"
	ScrollBottomScript = "window.scrollTo(0, document.body.scrollHeight)"
)

// ScrollToScript scrolls the window to vertical offset y.
func ScrollToScript(y int) string {
	return fmt.Sprintf("window.scrollTo(0, %d)", y)
}

// ScrollByScript scrolls the window by dy pixels.
func ScrollByScript(dy int) string {
	return fmt.Sprintf("window.scrollBy(0, %d)", dy)
}
