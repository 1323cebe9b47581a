package build

import (
	"context"

	"github.com/outofforest/build"
	"github.com/outofforest/buildgo"
)

// Commands is a definition of commands available in build system
var Commands = map[string]build.Command{
	"setup": {Fn: setup, Description: "Installs tools required by development environment"},
	"test":  {Fn: goTests, Description: "Runs unit tests"},
}

func setup(ctx context.Context, _ build.DepsFunc) error {
	return buildgo.EnsureGo(ctx)
}

func init() {
	buildgo.AddCommands(Commands)
}
