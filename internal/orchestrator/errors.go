package orchestrator

import "errors"

// ErrInvariantViolation marks a fatal, non-retryable condition: upstream
// metadata promised a plugin inside this archive and every extraction
// strategy still came up empty-handed, or a parsed cell references a world
// that is not among the plugin's own saved worlds.
// It is deliberately never wrapped in a way a retry loop would catch.
var ErrInvariantViolation = errors.New("orchestrator: invariant violation")
