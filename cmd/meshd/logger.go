package main

import (
	"github.com/windowmesh/mesh/pkg/mesh/definition"
	"github.com/windowmesh/mesh/pkg/mesh/types"
)

func loggerFor(name string) types.Logger {
	if name == "" {
		name = "meshd"
	}
	return definition.NewDefaultLogger(name)
}
