package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"staffdir-scraper/internal/config"
)

// ErrNoCredentials means every source in the chain came up empty. This is a
// run-level fatal condition.
var ErrNoCredentials = errors.New("no credentials available")

// Set holds resolved login credentials. It lives in memory for the session
// only and is never written into artifacts.
type Set struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

func (s Set) complete() bool {
	return s.Identity != "" && s.Secret != ""
}

// PromptFunc is the interactive capability supplied by the caller. Unattended
// runs leave it nil.
type PromptFunc func() (Set, error)

// Resolver tries, in strict order: environment pair, local credential file,
// interactive prompt. The first source with both values wins.
type Resolver struct {
	cfg    config.CredentialsConfig
	prompt PromptFunc
	logger *zap.Logger
}

func NewResolver(cfg config.CredentialsConfig, prompt PromptFunc, logger *zap.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		prompt: prompt,
		logger: logger,
	}
}

func (r *Resolver) Resolve() (Set, error) {
	if set, ok := r.fromEnv(); ok {
		r.logger.Info("credentials resolved from environment", zap.String("identity", set.Identity))
		return set, nil
	}

	if set, ok := r.fromFile(); ok {
		r.logger.Info("credentials resolved from local file",
			zap.String("identity", set.Identity),
			zap.String("file", r.cfg.File),
		)
		return set, nil
	}

	if r.prompt == nil {
		return Set{}, ErrNoCredentials
	}

	set, err := r.prompt()
	if err != nil || !set.complete() {
		return Set{}, errors.WithSecondaryError(ErrNoCredentials, err)
	}

	// Best effort: keep the prompted credentials for the next unattended run.
	if err := r.persist(set); err != nil {
		r.logger.Warn("failed to persist prompted credentials", zap.Error(err))
	}

	r.logger.Info("credentials resolved from prompt", zap.String("identity", set.Identity))
	return set, nil
}

func (r *Resolver) fromEnv() (Set, bool) {
	set := Set{
		Identity: os.Getenv(r.cfg.IdentityEnv),
		Secret:   os.Getenv(r.cfg.SecretEnv),
	}
	return set, set.complete()
}

func (r *Resolver) fromFile() (Set, bool) {
	data, err := os.ReadFile(r.cfg.File)
	if err != nil {
		return Set{}, false
	}

	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		r.logger.Warn("credential file is not valid JSON", zap.String("file", r.cfg.File), zap.Error(err))
		return Set{}, false
	}
	return set, set.complete()
}

func (r *Resolver) persist(set Set) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(r.cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(r.cfg.File, data, 0o600)
}
