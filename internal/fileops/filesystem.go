package fileops

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// nativeOS is a billy.Filesystem that passes paths to the OS unchanged.
type nativeOS struct {
	osfs.ChrootOS
}

// Chroot returns a filesystem rooted at path.
//
//nolint:ireturn // signature dictated by billy.Chroot.
func (n *nativeOS) Chroot(path string) (billy.Filesystem, error) {
	return osfs.New(path, osfs.WithBoundOS()), nil
}

// Root returns "/", paths are not rewritten.
func (n *nativeOS) Root() string {
	return "/"
}

// NewOSFilesystem returns an OS-backed filesystem.
// With an empty root, paths are used as given. Otherwise every path,
// absolute or relative, is resolved inside root. Symlinks are resolved
// against root as well, so neither ".." nor a link can reach outside it.
//
//nolint:ireturn // callers only need the billy interface.
func NewOSFilesystem(root string) billy.Filesystem {
	if root == "" {
		return &nativeOS{}
	}
	return osfs.New(root, osfs.WithBoundOS())
}

// NewMemoryFilesystem returns an empty in-memory filesystem.
//
//nolint:ireturn // callers only need the billy interface.
func NewMemoryFilesystem() billy.Filesystem {
	return memfs.New()
}
