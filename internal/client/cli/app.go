package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/authkeeper/internal/client/auth"
	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/config"
	"github.com/dmitrijs2005/authkeeper/internal/client/credstore"
	"github.com/dmitrijs2005/authkeeper/internal/client/localdb"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/oauth"
	"github.com/dmitrijs2005/authkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// authManager is the part of auth.Manager the commands use.
type authManager interface {
	State(ctx context.Context) auth.State
	IsAuthenticated(ctx context.Context) bool
	Register(ctx context.Context, name, email, password string) (string, error)
	Login(ctx context.Context, email, password string) error
	Refresh(ctx context.Context) error
	Profile(ctx context.Context) (*models.Profile, error)
	Logout(ctx context.Context)
	DeleteAccount(ctx context.Context) (string, error)
	Close()
}

type oauthFlow interface {
	Providers() []string
	AuthCodeURL(ctx context.Context, provider string) (string, error)
	Callback(ctx context.Context, provider, code, state string) error
}

type App struct {
	config *config.Config
	auth   authManager
	oauth  oauthFlow
	db     *sql.DB
	log    logging.Logger
	reader *bufio.Reader
}

// NewApp opens the local database at c.StoragePath (creating it and its
// directory if needed) and wires the client stack on top of it.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if dir := filepath.Dir(c.StoragePath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := localdb.Open(ctx, c.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	api := client.NewHTTPClient(c.ServerURL, c.Endpoints,
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(log),
	)
	manager := auth.NewManager(api, credstore.NewSQLiteStore(db), auth.WithLogger(log))
	flow := oauth.NewFlow(oauthSettings(c.OAuth), metadata.NewSQLiteRepository(db), manager, log)

	return &App{
		config: c,
		auth:   manager,
		oauth:  flow,
		db:     db,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

func oauthSettings(c config.OAuthConfig) oauth.Settings {
	return oauth.Settings{
		RedirectURL: c.RedirectURL,
		Providers: map[string]oauth.ProviderSettings{
			oauth.Google:   {ClientID: c.Google.ClientID, Scopes: c.Google.Scopes},
			oauth.GitHub:   {ClientID: c.GitHub.ClientID, Scopes: c.GitHub.Scopes},
			oauth.Facebook: {ClientID: c.Facebook.ClientID, Scopes: c.Facebook.Scopes},
		},
	}
}

// Run blocks in the REPL until the user exits or stdin is closed.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	printlnFn("Welcome to authkeeper (type 'help' for commands)")
	runREPL(ctx, a, func() string { return a.getStatus(ctx) }, a.reader)
}

// Close stops the manager and closes the database.
func (a *App) Close() {
	a.auth.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn(context.Background(), "closing database failed", "error", err)
		}
	}
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.auth.IsAuthenticated(ctx)
}

func (a *App) getStatus(ctx context.Context) string {
	return fmt.Sprintf("(%s)", a.auth.State(ctx))
}
