package data

import "embed"

// DefaultPolicy is the file name of the built-in policy inside Policies.
const DefaultPolicy = "codegate.yaml"

var (
	//go:embed codegate.yaml all:policies
	Policies embed.FS
)
