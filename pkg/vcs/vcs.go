// Package vcs wraps the external tools the installer shells out to.
package vcs

import "context"

// Tool is the narrow capability the cache and installer need from version
// control and the filesystem. Tests substitute a fake so no git binary is
// required.
type Tool interface {
	// Clone clones url into dest, which must not exist yet.
	Clone(ctx context.Context, url, dest string) error
	// Checkout switches the working tree at dir to rev.
	Checkout(ctx context.Context, dir, rev string) error
	// Revision returns the commit currently checked out at dir.
	Revision(ctx context.Context, dir string) (string, error)
	// CopyTree copies the contents of src (not src itself) into dst,
	// overwriting files that already exist.
	CopyTree(src, dst string) error
}
