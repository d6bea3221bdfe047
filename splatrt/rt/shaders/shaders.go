package shaders

import (
	_ "embed"
)

//go:embed splats.wgsl
var SplatsWGSL string

//go:embed composite.wgsl
var CompositeWGSL string
