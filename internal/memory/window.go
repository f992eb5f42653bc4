package memory

// WindowMode selects how the context window size is interpreted.
type WindowMode string

// Window modes. Flat counts trailing turns; Exchanges counts trailing
// user+assistant pairs, i.e. keeps the last 2k turns. The original memory
// scripts disagreed on which one "window size" meant, so both are
// explicit options here.
const (
	WindowModeTurns     WindowMode = "turns"
	WindowModeExchanges WindowMode = "exchanges"
)

// Valid reports whether the mode is one of the recognized options.
func (m WindowMode) Valid() bool {
	return m == WindowModeTurns || m == WindowModeExchanges
}

// Window returns the last k turns in original order. If fewer than k
// turns exist, all of them are returned. k <= 0 yields an empty window.
// Pure: the result is a copy, never an alias of the input.
func Window(turns []Turn, k int) []Turn {
	if k <= 0 || len(turns) == 0 {
		return []Turn{}
	}
	if k > len(turns) {
		k = len(turns)
	}
	result := make([]Turn, k)
	copy(result, turns[len(turns)-k:])
	return result
}

// WindowExchanges returns the last n user+assistant exchanges,
// approximated as the last 2n turns.
func WindowExchanges(turns []Turn, n int) []Turn {
	if n <= 0 {
		return []Turn{}
	}
	return Window(turns, 2*n)
}
