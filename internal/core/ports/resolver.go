package ports

// DependencyResolver expands dependency globs into concrete files.
//
//go:generate mockgen -destination=mocks/resolver_mock.go -package=mocks -source=resolver.go
type DependencyResolver interface {
	// Resolve expands every glob against every directory in dirs. Globs with
	// a leading "!" are subtracted from the result. The result is sorted and
	// holds absolute paths of regular files.
	Resolve(dirs []string, globs []string) ([]string, error)
}
