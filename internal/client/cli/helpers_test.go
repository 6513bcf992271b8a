package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/client/auth"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// ---- input/output stubs ----

// stubInputs answers text prompts with answers in order and every password
// prompt with password.
func stubInputs(t *testing.T, password string, answers ...string) *[]string {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	prompts := &[]string{}
	getSimpleText = func(_ *bufio.Reader, prompt string, _ io.Writer) (string, error) {
		*prompts = append(*prompts, prompt)
		if len(answers) == 0 {
			return "", io.EOF
		}
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}
	getPassword = func(io.Writer) ([]byte, error) { return []byte(password), nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
	return prompts
}

func stubConfirm(t *testing.T, answer bool) {
	t.Helper()
	orig := confirm
	confirm = func(*bufio.Reader, string, io.Writer) (bool, error) { return answer, nil }
	t.Cleanup(func() { confirm = orig })
}

// captureOutput collects everything printed through printlnFn.
func captureOutput(t *testing.T) *strings.Builder {
	t.Helper()
	orig := printlnFn
	var out strings.Builder
	printlnFn = func(a ...any) (int, error) {
		return fmt.Fprintln(&out, a...)
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

// ---- fakes ----

type fakeManager struct {
	state     auth.State
	authed    bool
	closed    bool
	loggedOut bool

	registerMsg string
	registerErr error
	regName     string
	regEmail    string
	regPassword string

	loginErr      error
	loginEmail    string
	loginPassword string

	refreshErr error
	refreshed  bool

	profile    *models.Profile
	profileErr error

	deleteMsg    string
	deleteErr    error
	deleteCalled bool
}

func (f *fakeManager) State(context.Context) auth.State     { return f.state }
func (f *fakeManager) IsAuthenticated(context.Context) bool { return f.authed }
func (f *fakeManager) Close()                               { f.closed = true }

func (f *fakeManager) Register(_ context.Context, name, email, password string) (string, error) {
	f.regName, f.regEmail, f.regPassword = name, email, password
	return f.registerMsg, f.registerErr
}

func (f *fakeManager) Login(_ context.Context, email, password string) error {
	f.loginEmail, f.loginPassword = email, password
	if f.loginErr == nil {
		f.state, f.authed = auth.Valid, true
	}
	return f.loginErr
}

func (f *fakeManager) Refresh(context.Context) error {
	f.refreshed = true
	return f.refreshErr
}

func (f *fakeManager) Profile(context.Context) (*models.Profile, error) {
	return f.profile, f.profileErr
}

func (f *fakeManager) Logout(context.Context) {
	f.loggedOut = true
	f.state, f.authed = auth.LoggedOut, false
}

func (f *fakeManager) DeleteAccount(context.Context) (string, error) {
	f.deleteCalled = true
	return f.deleteMsg, f.deleteErr
}

type fakeFlow struct {
	providers []string
	urlErr    error
	cbErr     error

	cbProvider string
	cbCode     string
	cbState    string
}

func (f *fakeFlow) Providers() []string { return f.providers }

func (f *fakeFlow) AuthCodeURL(_ context.Context, provider string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://provider.example/authorize?state=s1&provider=" + provider, nil
}

func (f *fakeFlow) Callback(_ context.Context, provider, code, state string) error {
	f.cbProvider, f.cbCode, f.cbState = provider, code, state
	return f.cbErr
}

func newTestApp(m *fakeManager, f *fakeFlow) *App {
	if f == nil {
		f = &fakeFlow{}
	}
	return &App{
		auth:   m,
		oauth:  f,
		log:    logging.NopLogger{},
		reader: bufio.NewReader(strings.NewReader("")),
	}
}
