package guard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"garage-client/internal/logging"
	"garage-client/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSession model.Session

func (s staticSession) Snapshot() model.Session { return model.Session(s) }

var table = Table{
	"/":           {},
	"/dashboard":  {RequiresAuth: true},
	"/workorders": {RequiresAuth: true, Role: model.RoleMechanic},
	"/admin":      {RequiresAuth: true, Role: model.RoleAdmin},
}

func anonymous() staticSession {
	return staticSession{State: model.SessionAnonymous}
}

func signedIn(role model.Role) staticSession {
	return staticSession{
		Token: "T2",
		User:  &model.UserProfile{ID: 5, Role: role},
		State: model.SessionAuthenticated,
	}
}

func TestCheck_PublicAndUnknownDestinations(t *testing.T) {
	g := New(Options{Table: table, Session: anonymous(), Logger: logging.Discard()})

	assert.True(t, g.Check("/").Proceed())
	assert.True(t, g.Check("/not-in-table").Proceed())
}

func TestCheck_AnonymousRedirectedToLogin(t *testing.T) {
	g := New(Options{Table: table, Session: anonymous(), Logger: logging.Discard()})

	d := g.Check("/dashboard")
	assert.False(t, d.Proceed())
	assert.Equal(t, DefaultLoginDestination, d.Redirect)
}

func TestCheck_AuthenticatedProceeds(t *testing.T) {
	g := New(Options{Table: table, Session: signedIn(model.RoleClient), Logger: logging.Discard()})
	assert.True(t, g.Check("/dashboard").Proceed())
}

func TestCheck_RoleAnnotateNeverBlocks(t *testing.T) {
	g := New(Options{Table: table, Session: signedIn(model.RoleClient), Logger: logging.Discard()})
	assert.True(t, g.Check("/admin").Proceed())
	assert.True(t, g.Check("/workorders").Proceed())
}

func TestCheck_RoleEnforce(t *testing.T) {
	opts := Options{
		Table:               table,
		Policy:              RoleEnforce,
		LoginDestination:    "/signin",
		FallbackDestination: "/home",
		Logger:              logging.Discard(),
	}

	opts.Session = signedIn(model.RoleMechanic)
	g := New(opts)
	assert.True(t, g.Check("/workorders").Proceed())
	assert.Equal(t, Decision{Redirect: "/home"}, g.Check("/admin"))

	opts.Session = staticSession{Token: "T1", State: model.SessionAuthenticated}
	g = New(opts)
	assert.Equal(t, Decision{Redirect: "/home"}, g.Check("/workorders"))

	opts.Session = anonymous()
	g = New(opts)
	assert.Equal(t, Decision{Redirect: "/signin"}, g.Check("/workorders"))
}

func TestParseRolePolicy(t *testing.T) {
	p, err := ParseRolePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RoleAnnotate, p)

	p, err = ParseRolePolicy("Enforce")
	require.NoError(t, err)
	assert.Equal(t, RoleEnforce, p)

	_, err = ParseRolePolicy("deny")
	require.Error(t, err)
}

func TestLoadTable(t *testing.T) {
	src := `
/:
  requiresAuth: false
/workorders:
  requiresAuth: true
  role: mechanic
/profile:
  requiresAuth: true
`
	got, err := LoadTable(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, Table{
		"/":           {},
		"/workorders": {RequiresAuth: true, Role: model.RoleMechanic},
		"/profile":    {RequiresAuth: true},
	}, got)
}

func TestLoadTable_Errors(t *testing.T) {
	_, err := LoadTable(strings.NewReader("/x:\n  role: owner\n"))
	require.ErrorContains(t, err, "unknown role")

	_, err = LoadTable(strings.NewReader("x:\n  requiresAuth: true\n"))
	require.ErrorContains(t, err, "must start with /")

	_, err = LoadTable(strings.NewReader("/x:\n  needsLogin: true\n"))
	require.Error(t, err)

	empty, err := LoadTable(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoadTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("/admin:\n  requiresAuth: true\n  role: ADMIN\n"), 0o600))

	got, err := LoadTableFile(path)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, got["/admin"].Role)

	_, err = LoadTableFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
