package profiles

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	oauth2github "golang.org/x/oauth2/github"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/config"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/logging"
	"github.com/BetselotB/idea-plate/internal/models"
)

const (
	// LinkStateTTL is how long a link URL stays valid.
	LinkStateTTL = 5 * time.Minute
	// linkedRepoCount is how many recently updated repos are stored.
	linkedRepoCount = 5
)

// GitHubLinker attaches a GitHub account to a profile through the OAuth
// web flow.
type GitHubLinker struct {
	oauth  *oauth2.Config
	store  Store
	states *stateStore
	logger *zap.Logger
	apiURL *url.URL
}

// LinkerOption configures a GitHubLinker.
type LinkerOption func(*GitHubLinker)

// WithAPIBaseURL points the GitHub REST client at another server. The URL
// must end with a slash.
func WithAPIBaseURL(u *url.URL) LinkerOption {
	return func(l *GitHubLinker) { l.apiURL = u }
}

// WithEndpoint replaces the GitHub OAuth endpoint.
func WithEndpoint(ep oauth2.Endpoint) LinkerOption {
	return func(l *GitHubLinker) { l.oauth.Endpoint = ep }
}

// NewGitHubLinker builds a linker from the OAuth app configuration.
func NewGitHubLinker(cfg config.GitHubConfig, store Store, logger *zap.Logger, opts ...LinkerOption) *GitHubLinker {
	l := &GitHubLinker{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret.Value(),
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     oauth2github.Endpoint,
			Scopes:       []string{"read:user"},
		},
		store:  store,
		states: newStateStore(LinkStateTTL),
		logger: logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run expires unused link states until ctx is done.
func (l *GitHubLinker) Run(ctx context.Context) {
	l.states.cleanupLoop(ctx, time.Minute)
}

// LinkURL returns the GitHub authorization URL for the caller. The state in
// it can be redeemed once, within LinkStateTTL.
func (l *GitHubLinker) LinkURL(caller *identity.Caller) (string, error) {
	if err := identity.Require(caller); err != nil {
		return "", err
	}
	state := l.states.issue(caller.UID)
	return l.oauth.AuthCodeURL(state), nil
}

// CompleteLink handles the OAuth callback: it redeems the state, exchanges
// the code, fetches the GitHub user and their most recently updated repos
// and stores them on the profile.
func (l *GitHubLinker) CompleteLink(ctx context.Context, code, state string) (*models.UserProfile, error) {
	if code == "" || state == "" {
		return nil, apperr.Validation("code and state are required")
	}
	uid, ok := l.states.take(state)
	if !ok {
		return nil, apperr.Validation("link state is invalid or expired")
	}

	tok, err := l.oauth.Exchange(ctx, code)
	if err != nil {
		l.logger.Warn("github code exchange failed", zap.String("uid", uid), zap.Error(err))
		return nil, apperr.Auth("github authorization failed")
	}

	client := github.NewClient(l.oauth.Client(ctx, tok))
	if l.apiURL != nil {
		client.BaseURL = l.apiURL
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetch github user: %w", err)
	}
	repos, _, err := client.Repositories.List(ctx, user.GetLogin(), &github.RepositoryListOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: linkedRepoCount},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch github repos: %w", err)
	}

	link := linkFromGitHub(user, repos)
	link.LinkedAt = time.Now().UTC()
	p, err := l.store.SetGitHubLink(ctx, uid, link)
	if err != nil {
		return nil, err
	}
	l.logger.Info("github account linked", zap.String("uid", uid), zap.String("github_login", link.Username))
	return p, nil
}

// Unlink removes the GitHub link from the caller's own profile.
func (l *GitHubLinker) Unlink(ctx context.Context, caller *identity.Caller, uid string) (*models.UserProfile, error) {
	if err := identity.Require(caller); err != nil {
		return nil, err
	}
	if caller.UID != uid {
		return nil, apperr.Auth("profiles can only be edited by their owner")
	}
	p, err := l.store.SetGitHubLink(ctx, uid, nil)
	if err != nil {
		return nil, err
	}
	l.logger.Info("github account unlinked", zap.String("uid", uid))
	return p, nil
}

func linkFromGitHub(user *github.User, repos []*github.Repository) *models.GitHubLink {
	link := &models.GitHubLink{
		Username:    user.GetLogin(),
		Name:        user.GetName(),
		Bio:         user.GetBio(),
		AvatarURL:   user.GetAvatarURL(),
		URL:         user.GetHTMLURL(),
		Location:    user.GetLocation(),
		Company:     user.GetCompany(),
		Blog:        user.GetBlog(),
		Followers:   user.GetFollowers(),
		Following:   user.GetFollowing(),
		PublicRepos: user.GetPublicRepos(),
	}
	if link.URL == "" && link.Username != "" {
		link.URL = "https://github.com/" + link.Username
	}
	for i, r := range repos {
		if i == linkedRepoCount {
			break
		}
		link.Repos = append(link.Repos, models.GitHubRepo{
			Name:        r.GetName(),
			Description: r.GetDescription(),
			URL:         r.GetHTMLURL(),
			Language:    r.GetLanguage(),
			Stars:       r.GetStargazersCount(),
			Forks:       r.GetForksCount(),
		})
	}
	return link
}

// stateStore holds one-time link states, each bound to a uid.
type stateStore struct {
	mu     sync.Mutex
	states map[string]pendingLink
	ttl    time.Duration
	now    func() time.Time
}

type pendingLink struct {
	uid       string
	createdAt time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{
		states: make(map[string]pendingLink),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *stateStore) issue(uid string) string {
	state := randomHex(16)
	s.mu.Lock()
	s.states[state] = pendingLink{uid: uid, createdAt: s.now()}
	s.mu.Unlock()
	return state
}

// take redeems a state. A state is valid once.
func (s *stateStore) take(state string) (string, bool) {
	state = strings.TrimSpace(state)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.states[state]
	if !ok {
		return "", false
	}
	delete(s.states, state)
	if s.now().Sub(p.createdAt) > s.ttl {
		return "", false
	}
	return p.uid, true
}

func (s *stateStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for state, p := range s.states {
		if now.Sub(p.createdAt) > s.ttl {
			delete(s.states, state)
		}
	}
}

func (s *stateStore) cleanupLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *stateStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
