//go:build tools

package main

import (
	_ "github.com/google/wire/cmd/wire"
)
