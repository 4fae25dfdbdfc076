package configs

import "embed"

// ExampleScripts contains the dialog scripts written by "dialogtest init".
//
//go:embed scripts/*.yaml
var ExampleScripts embed.FS
