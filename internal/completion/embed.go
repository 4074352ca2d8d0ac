package completion

import "embed"

// overlayData holds the curated completion overlays compiled into the
// binary. One YAML file per tool family.
//
//go:embed data/*.yaml
var overlayData embed.FS
