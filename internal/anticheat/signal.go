package anticheat

// SignalKind classifies an environment observation.
type SignalKind string

const (
	// SignalTabHidden fires when the quiz surface loses visibility.
	SignalTabHidden SignalKind = "TAB_HIDDEN"
	// SignalCopy fires on a copy attempt.
	SignalCopy SignalKind = "COPY"
	// SignalPaste fires on a paste attempt.
	SignalPaste SignalKind = "PASTE"
	// SignalContextMenu fires when the context menu is opened.
	SignalContextMenu SignalKind = "CONTEXT_MENU"
	// SignalDevToolsShortcut fires on keyboard combinations associated with
	// inspection tools (Ctrl+Shift+I/J/C, F12).
	SignalDevToolsShortcut SignalKind = "DEVTOOLS_SHORTCUT"
	// SignalWindowGeometry carries outer/inner window size deltas used to
	// infer an open inspection panel.
	SignalWindowGeometry SignalKind = "WINDOW_GEOMETRY"
)

// Signal is one observation from a SignalSource. These are best-effort
// heuristics, not security boundaries: false negatives are expected and
// false positives should stay low-severity.
type Signal struct {
	Kind SignalKind
	Meta map[string]any
}

// SignalSource feeds environment observations to a Monitor. Implementations
// wrap whatever capability probing the host environment offers (visibility
// callbacks, clipboard hooks, window metrics); the Monitor's scoring logic
// never depends on the probing mechanism.
type SignalSource interface {
	// Start begins emitting signals through emit until Stop is called.
	Start(emit func(Signal)) error
	// Stop detaches the source. It must be safe to call more than once.
	Stop()
}

// WindowGeometrySignal builds a SignalWindowGeometry from raw window metrics.
func WindowGeometrySignal(outerWidth, innerWidth, outerHeight, innerHeight int) Signal {
	return Signal{
		Kind: SignalWindowGeometry,
		Meta: map[string]any{
			"widthDelta":  outerWidth - innerWidth,
			"heightDelta": outerHeight - innerHeight,
		},
	}
}

// KeyComboSignal builds a SignalDevToolsShortcut carrying the offending keys.
func KeyComboSignal(key string, ctrl, shift bool) Signal {
	return Signal{
		Kind: SignalDevToolsShortcut,
		Meta: map[string]any{
			"key":      key,
			"ctrlKey":  ctrl,
			"shiftKey": shift,
		},
	}
}
