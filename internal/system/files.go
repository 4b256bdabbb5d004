package system

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// MaxReadSize caps the size of a file returned by Cat
const MaxReadSize int64 = 1 << 20

// Error is a filesystem failure worded the way the terminal prints it
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrTraversal    = Error("Invalid path: Directory traversal attempt detected.")
	ErrNotExist     = Error("No such file or directory")
	ErrIsDir        = Error("Is a directory")
	ErrNotDir       = Error("Not a directory")
	ErrFileTooLarge = Error("File too large")
)

// DirEntry is a directory in a listing
type DirEntry struct {
	Name string `json:"name"`
}

// FileEntry is a regular file in a listing
type FileEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// DirectoryListing represents a directory's contents
type DirectoryListing struct {
	Directories []DirEntry  `json:"directories"`
	Files       []FileEntry `json:"files"`
}

// Sandbox exposes a directory tree read-only under virtual absolute paths.
// "/" is the root directory; nothing outside it is reachable.
type Sandbox struct {
	root         string
	publicPrefix string
}

// NewSandbox roots a sandbox at dir. publicPrefix is where the same tree is
// served as static files.
func NewSandbox(dir, publicPrefix string) (*Sandbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve fs root: %w", err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &Sandbox{root: abs, publicPrefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

// Root returns the absolute host directory backing the sandbox
func (s *Sandbox) Root() string { return s.root }

// Clean turns a requested path into a virtual absolute path. Relative
// paths are taken from pwd ("/" when empty). It returns ErrTraversal if
// the result would climb above the root.
func Clean(requested, pwd string) (string, error) {
	if requested == "" {
		requested = "."
	}
	if pwd == "" {
		pwd = "/"
	}
	if !strings.HasPrefix(pwd, "/") {
		pwd = "/" + pwd
	}

	p := requested
	if !strings.HasPrefix(p, "/") {
		p = pwd + "/" + p
	}

	// Walk the segments so ".." above the root is detected rather than
	// silently clamped by path.Clean.
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return "", ErrTraversal
			}
			parts = parts[:len(parts)-1]
		default:
			if strings.ContainsRune(seg, '\\') || strings.ContainsRune(seg, 0) {
				return "", ErrTraversal
			}
			parts = append(parts, seg)
		}
	}
	return "/" + strings.Join(parts, "/"), nil
}

// hostPath maps a virtual path to the host path, following symlinks and
// rejecting any that lead outside the root.
func (s *Sandbox) hostPath(virtual string) (string, error) {
	host := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(virtual, "/")))

	real, err := filepath.EvalSymlinks(host)
	if errors.Is(err, fs.ErrNotExist) {
		return host, nil
	}
	if err != nil {
		return "", err
	}
	if real != s.root && !strings.HasPrefix(real, s.root+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	return real, nil
}

func (s *Sandbox) stat(requested, pwd string) (string, string, os.FileInfo, error) {
	virtual, err := Clean(requested, pwd)
	if err != nil {
		return "", "", nil, err
	}
	host, err := s.hostPath(virtual)
	if err != nil {
		return "", "", nil, err
	}
	info, err := os.Stat(host)
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", nil, ErrNotExist
	}
	if err != nil {
		return "", "", nil, err
	}
	return virtual, host, info, nil
}

// List lists a directory. Dot entries and Python sources are hidden and
// both groups are sorted by name.
func (s *Sandbox) List(requested, pwd string) (*DirectoryListing, error) {
	_, host, info, err := s.stat(requested, pwd)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotDir
	}

	entries, err := os.ReadDir(host)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory: %w", err)
	}

	listing := &DirectoryListing{Directories: []DirEntry{}, Files: []FileEntry{}}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		// Stat follows symlinks so linked directories list as directories
		fi, err := os.Stat(filepath.Join(host, name))
		if err != nil {
			// Skip files we can't stat
			continue
		}
		if fi.IsDir() {
			listing.Directories = append(listing.Directories, DirEntry{Name: name})
			continue
		}
		if strings.HasSuffix(name, ".py") {
			continue
		}
		listing.Files = append(listing.Files, FileEntry{Name: name, Size: fi.Size()})
	}

	sort.Slice(listing.Directories, func(i, j int) bool {
		return listing.Directories[i].Name < listing.Directories[j].Name
	})
	sort.Slice(listing.Files, func(i, j int) bool {
		return listing.Files[i].Name < listing.Files[j].Name
	})
	return listing, nil
}

// Cat returns the content of a file
func (s *Sandbox) Cat(requested, pwd string) (string, error) {
	_, host, info, err := s.stat(requested, pwd)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", ErrIsDir
	}
	if info.Size() > MaxReadSize {
		return "", ErrFileTooLarge
	}

	b, err := os.ReadFile(host)
	if err != nil {
		return "", fmt.Errorf("cannot read file: %w", err)
	}
	return string(b), nil
}

// Resolve checks that a path exists, and is a directory when mustBeDir is
// set, and returns its virtual absolute path.
func (s *Sandbox) Resolve(requested, pwd string, mustBeDir bool) (string, error) {
	virtual, _, info, err := s.stat(requested, pwd)
	if err != nil {
		return "", err
	}
	if mustBeDir && !info.IsDir() {
		return "", ErrNotDir
	}
	return virtual, nil
}

// PublicURL returns the URL the static handler serves a path under
func (s *Sandbox) PublicURL(requested, pwd string) (string, error) {
	virtual, err := Clean(requested, pwd)
	if err != nil {
		return "", err
	}
	return path.Join(s.publicPrefix+"/", virtual), nil
}

// File returns the host path of a regular file for static serving. Hidden
// names and Python sources are reported as missing, as in listings.
func (s *Sandbox) File(requested string) (string, error) {
	virtual, host, info, err := s.stat(requested, "/")
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", ErrIsDir
	}
	for _, seg := range strings.Split(virtual, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", ErrNotExist
		}
	}
	if strings.HasSuffix(virtual, ".py") {
		return "", ErrNotExist
	}
	return host, nil
}
