//go:build wireinject

package bootstrap

import (
	"github.com/google/wire"
)

// InitializeApp is the injector Wire generates wire_gen.go from. Running
// `wire` against this file regenerates wire_gen.go; this file itself
// never compiles into the binary (see the build tag above).
//
// Params:
//   - p: the caller-supplied values configuration can't express (file
//     paths, child constructors).
//
// Returns:
//   - *App: every wired dependency, ready to run.
//   - error: any error during construction.
func InitializeApp(p Params) (*App, error) {
	wire.Build(
		loadConfig,
		ProvideRegistry,
		ProvideStorage,
		ProvideSupervisor,
		ProvideTimer,
		newCleanup,
		wire.Struct(new(App), "*"),
	)
	return nil, nil
}
