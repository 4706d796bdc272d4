package auth

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
)

// DefaultRealm is the Basic auth realm used when none is given.
const DefaultRealm = "Activity Sign-up"

// Authenticator checks credentials against a set of users and argon2id hashes.
type Authenticator struct {
	users  map[string]string
	realm  string
	logger *slog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithRealm sets the realm sent in WWW-Authenticate challenges.
func WithRealm(realm string) Option {
	return func(a *Authenticator) {
		a.realm = realm
	}
}

// WithLogger sets the logger used to record failed logins.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// New creates an Authenticator for the given user to hash map.
func New(users map[string]string, opts ...Option) *Authenticator {
	a := &Authenticator{
		users:  make(map[string]string, len(users)),
		realm:  DefaultRealm,
		logger: slog.Default(),
	}
	for user, hash := range users {
		a.users[user] = hash
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadFile reads an auth file of "user:hash" lines. Blank lines and lines
// starting with # are ignored.
func LoadFile(path string, opts ...Option) (*Authenticator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth file: %w", err)
	}
	defer f.Close()

	users, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("auth file %s: %w", path, err)
	}
	return New(users, opts...), nil
}

// Parse reads "user:hash" lines from r.
func Parse(r io.Reader) (map[string]string, error) {
	users := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		user, hash, ok := strings.Cut(line, ":")
		if !ok || user == "" || hash == "" {
			return nil, fmt.Errorf("line %d: expected user:hash", lineNo)
		}
		if _, dup := users[user]; dup {
			return nil, fmt.Errorf("line %d: duplicate user %q", lineNo, user)
		}
		users[user] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read auth file: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("no users defined")
	}
	return users, nil
}

// Users returns the known user names, sorted.
func (a *Authenticator) Users() []string {
	users := make([]string, 0, len(a.users))
	for u := range a.users {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Check reports whether the credentials are valid.
func (a *Authenticator) Check(user, password string) bool {
	hash, ok := a.users[user]
	if !ok {
		// Unknown users cost the same as known ones.
		_, _ = VerifyPassword(password, dummyHash())
		return false
	}
	valid, err := VerifyPassword(password, hash)
	if err != nil {
		a.logger.Error("stored password hash is invalid", "user", user, "error", err)
		return false
	}
	return valid
}

// Middleware requires valid Basic auth credentials on every request.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || !a.Check(user, password) {
			if ok {
				a.logger.Warn("authentication failed", "user", user, "remote_addr", r.RemoteAddr)
			}
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q, charset="UTF-8"`, a.realm))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var dummyHash = sync.OnceValue(func() string {
	hash, _ := HashPassword("unused")
	return hash
})

// WriteFile sets user's hash in the auth file at path, creating it if needed.
// Other users' lines are kept in place.
func WriteFile(path, user, hash string) error {
	if user == "" || strings.Contains(user, ":") {
		return fmt.Errorf("invalid user name %q", user)
	}

	var lines []string
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read auth file: %w", err)
	}

	replaced := false
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		if name, _, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(name) == user {
			line = user + ":" + hash
			replaced = true
		}
		lines = append(lines, line)
	}
	if !replaced {
		lines = append(lines, user+":"+hash)
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}
	return nil
}
