package domain

import (
	"path/filepath"
	"time"
)

const (
	// ConfigFileName is the name of the asset configuration file.
	ConfigFileName = "assetbuilder.yaml"

	// StateDirName is the name of the internal state directory.
	StateDirName = ".assetbuilder"

	// ManifestFileName is the name of the URL manifest file.
	ManifestFileName = "manifest.json"

	// LockFileName is the name of the cross-process build lock file.
	LockFileName = ".assetbuilder.lock"

	// DefaultLockTimeout bounds how long a build waits for the lock.
	DefaultLockTimeout = 5 * time.Minute

	// DefaultLockRetryDelay is the polling interval while waiting for the lock.
	DefaultLockRetryDelay = 50 * time.Millisecond

	// DefaultListenAddr is the address the server listens on.
	DefaultListenAddr = ":8080"

	// DefaultBaseURL is the URL prefix assets are served under.
	DefaultBaseURL = "/"

	// DefaultSeparator joins the files of an asset group.
	DefaultSeparator = "\n"

	// GroupPrefix marks a signed asset group request path.
	GroupPrefix = "@@/"

	// UpdatePath triggers a full rebuild when autobuild is enabled.
	UpdatePath = "update"

	// ImmutableCacheControl is sent when the client's cache-buster matches.
	ImmutableCacheControl = "immutable, max-age=700000000, public"

	// FarFutureExpires is sent with every served asset.
	FarFutureExpires = "Wed, 20 Jan 2038 00:00:00 GMT"

	// CacheBusterLength is the number of hex digits kept from the content digest.
	CacheBusterLength = 8

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultManifestPath returns the manifest location relative to root.
// It joins root, .assetbuilder and manifest.json.
func DefaultManifestPath(root string) string {
	return filepath.Join(root, StateDirName, ManifestFileName)
}
