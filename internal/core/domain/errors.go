package domain

import "go.trai.ch/zerr"

var (
	// ErrAssetNotFound is returned when a virtual path is not registered.
	ErrAssetNotFound = zerr.New("asset not found")

	// ErrAssetAlreadyRegistered is returned when a virtual path is registered twice.
	ErrAssetAlreadyRegistered = zerr.New("asset already registered")

	// ErrInvalidVirtualPath is returned when a virtual path is empty or escapes the asset directory.
	ErrInvalidVirtualPath = zerr.New("invalid virtual path")

	// ErrUnknownTag is returned when no asset carries the requested tag.
	ErrUnknownTag = zerr.New("unknown tag")

	// ErrNoTagsSpecified is returned when a tag query is empty.
	ErrNoTagsSpecified = zerr.New("no tags specified")

	// ErrInvalidGroupToken is returned when a signed asset group token is tampered with or corrupt.
	ErrInvalidGroupToken = zerr.New("invalid group token")

	// ErrGroupSignFailed is returned when an asset group cannot be signed.
	ErrGroupSignFailed = zerr.New("failed to sign asset group")

	// ErrUnstableSecret is returned when no stable signing secret can be derived.
	ErrUnstableSecret = zerr.New("could not derive a stable secret")

	// ErrLockTimeout is returned when the build lock is not acquired in time.
	ErrLockTimeout = zerr.New("timed out waiting for build lock")

	// ErrLockFailed is returned when the build lock cannot be taken or released.
	ErrLockFailed = zerr.New("failed to acquire build lock")

	// ErrEmptyCommand is returned when a build command has nothing to run.
	ErrEmptyCommand = zerr.New("build command is empty")

	// ErrBuildFailed is returned when a build command exits non-zero.
	ErrBuildFailed = zerr.New("build command failed")

	// ErrCommandStartFailed is returned when a build command cannot be started.
	ErrCommandStartFailed = zerr.New("failed to start build command")

	// ErrRebuildAllFailed is returned when the rebuild-all command exits non-zero.
	ErrRebuildAllFailed = zerr.New("rebuild all command failed")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when no config file is found.
	ErrConfigNotFound = zerr.New("could not find assetbuilder.yaml")

	// ErrInvalidCommand is returned when an asset command sets both run and cmd, or neither.
	ErrInvalidCommand = zerr.New("command must set exactly one of 'run' or 'cmd'")

	// ErrInvalidLockTimeout is returned when the lock timeout is not a valid duration.
	ErrInvalidLockTimeout = zerr.New("invalid lock timeout")

	// ErrMissingAssetPaths is returned when an asset entry lists no paths.
	ErrMissingAssetPaths = zerr.New("asset entry has no paths")

	// ErrStoreCreateFailed is returned when the manifest directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create manifest directory")

	// ErrStoreReadFailed is returned when the manifest cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read manifest")

	// ErrStoreUnmarshalFailed is returned when the manifest cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal manifest")

	// ErrStoreMarshalFailed is returned when the manifest cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal manifest")

	// ErrStoreWriteFailed is returned when the manifest cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write manifest")

	// ErrServerFailed is returned when the HTTP server stops with an error.
	ErrServerFailed = zerr.New("http server failed")
)
