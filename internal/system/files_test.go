package system

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	root := t.TempDir()
	mustWrite := func(rel, content string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	mustWrite("motd.txt", "welcome")
	mustWrite("docs/readme.md", "# docs")
	mustWrite("docs/guide.txt", "guide")
	mustWrite("docs/.hidden", "x")
	mustWrite("index.py", "print()")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	sb, err := NewSandbox(root, "/fs")
	require.NoError(t, err)
	return sb
}

func TestClean(t *testing.T) {
	cases := []struct {
		requested, pwd, want string
	}{
		{"", "", "/"},
		{".", "/docs", "/docs"},
		{"readme.md", "/docs", "/docs/readme.md"},
		{"/motd.txt", "/docs", "/motd.txt"},
		{"../motd.txt", "/docs", "/motd.txt"},
		{"a/./b//c/..", "/", "/a/b"},
		{"x", "docs", "/docs/x"},
	}
	for _, tc := range cases {
		got, err := Clean(tc.requested, tc.pwd)
		require.NoError(t, err, tc.requested)
		assert.Equal(t, tc.want, got, tc.requested)
	}

	for _, bad := range []string{"..", "../etc/passwd", "/../x", "docs/../../x", `..\x`} {
		_, err := Clean(bad, "/")
		assert.ErrorIs(t, err, ErrTraversal, bad)
	}
	_, err := Clean("../../x", "/docs")
	assert.ErrorIs(t, err, ErrTraversal)
}

func TestSandbox_List(t *testing.T) {
	sb := newTestSandbox(t)

	listing, err := sb.List("", "/")
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{{Name: "bin"}, {Name: "docs"}}, listing.Directories)
	assert.Equal(t, []FileEntry{{Name: "motd.txt", Size: 7}}, listing.Files)

	listing, err = sb.List(".", "/docs")
	require.NoError(t, err)
	assert.Empty(t, listing.Directories)
	assert.Equal(t, []FileEntry{{Name: "guide.txt", Size: 5}, {Name: "readme.md", Size: 6}}, listing.Files)

	_, err = sb.List("motd.txt", "/")
	assert.ErrorIs(t, err, ErrNotDir)

	_, err = sb.List("nope", "/")
	assert.ErrorIs(t, err, ErrNotExist)

	_, err = sb.List("..", "/")
	assert.ErrorIs(t, err, ErrTraversal)
}

func TestSandbox_Cat(t *testing.T) {
	sb := newTestSandbox(t)

	content, err := sb.Cat("readme.md", "/docs")
	require.NoError(t, err)
	assert.Equal(t, "# docs", content)

	_, err = sb.Cat("docs", "/")
	assert.ErrorIs(t, err, ErrIsDir)
	assert.Equal(t, "Is a directory", err.Error())

	_, err = sb.Cat("missing.txt", "/")
	assert.ErrorIs(t, err, ErrNotExist)
	assert.Equal(t, "No such file or directory", err.Error())
}

func TestSandbox_CatTooLarge(t *testing.T) {
	sb := newTestSandbox(t)
	big := strings.Repeat("x", int(MaxReadSize)+1)
	require.NoError(t, os.WriteFile(filepath.Join(sb.Root(), "big.txt"), []byte(big), 0o644))

	_, err := sb.Cat("/big.txt", "/")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestSandbox_Resolve(t *testing.T) {
	sb := newTestSandbox(t)

	p, err := sb.Resolve("docs", "/", true)
	require.NoError(t, err)
	assert.Equal(t, "/docs", p)

	p, err = sb.Resolve("..", "/docs", true)
	require.NoError(t, err)
	assert.Equal(t, "/", p)

	p, err = sb.Resolve("readme.md", "/docs", false)
	require.NoError(t, err)
	assert.Equal(t, "/docs/readme.md", p)

	_, err = sb.Resolve("readme.md", "/docs", true)
	assert.ErrorIs(t, err, ErrNotDir)

	_, err = sb.Resolve("ghost", "/", false)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestSandbox_SymlinkEscape(t *testing.T) {
	sb := newTestSandbox(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(sb.Root(), "escape")))
	require.NoError(t, os.Symlink(filepath.Join(sb.Root(), "docs"), filepath.Join(sb.Root(), "inside")))

	_, err := sb.Cat("escape/secret", "/")
	assert.ErrorIs(t, err, ErrTraversal)

	_, err = sb.List("escape", "/")
	assert.ErrorIs(t, err, ErrTraversal)

	content, err := sb.Cat("inside/guide.txt", "/")
	require.NoError(t, err)
	assert.Equal(t, "guide", content)
}

func TestSandbox_PublicURL(t *testing.T) {
	sb := newTestSandbox(t)

	u, err := sb.PublicURL("readme.md", "/docs")
	require.NoError(t, err)
	assert.Equal(t, "/fs/docs/readme.md", u)

	u, err = sb.PublicURL("/", "/")
	require.NoError(t, err)
	assert.Equal(t, "/fs", u)

	_, err = sb.PublicURL("../x", "/")
	assert.ErrorIs(t, err, ErrTraversal)
}

func TestSandbox_File(t *testing.T) {
	sb := newTestSandbox(t)

	host, err := sb.File("/docs/readme.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sb.Root(), "docs", "readme.md"), host)

	_, err = sb.File("/docs/.hidden")
	assert.ErrorIs(t, err, ErrNotExist)

	_, err = sb.File("/index.py")
	assert.ErrorIs(t, err, ErrNotExist)

	_, err = sb.File("/docs")
	assert.ErrorIs(t, err, ErrIsDir)

	_, err = sb.File("/../etc/passwd")
	assert.ErrorIs(t, err, ErrTraversal)
}
