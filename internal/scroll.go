package internal

// Viewport describes the scroll position of a scrollable message view.
// Units are whatever the view measures in: pixels, or lines in a terminal.
type Viewport struct {
	ScrollTop    int
	ScrollHeight int
	Height       int
}

// Remaining returns how much content is left below the visible area
func (v Viewport) Remaining() int {
	return v.ScrollHeight - v.ScrollTop - v.Height
}

// ScrollProximityTrigger reports whether the visible area is within
// thresholdPx of the end of the content. It never does any I/O.
func ScrollProximityTrigger(scrollTop, scrollHeight, viewportHeight, thresholdPx int) bool {
	return scrollHeight-scrollTop-viewportHeight < thresholdPx
}

// NearEnd is ScrollProximityTrigger applied to v
func (v Viewport) NearEnd(threshold int) bool {
	return ScrollProximityTrigger(v.ScrollTop, v.ScrollHeight, v.Height, threshold)
}
