package integration

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// ValidatePolicies checks every bound in set
func ValidatePolicies(set PolicySet) error {
	if err := validate.Struct(set); err != nil {
		return errors.Wrap(err, "invalid policy set")
	}
	return nil
}

// MalformedPolicyError reports a policy file that is not valid YAML or does
// not match the policy layout
type MalformedPolicyError struct {
	Err error
}

func (e *MalformedPolicyError) Error() string { return "malformed policy: " + e.Err.Error() }

func (e *MalformedPolicyError) Unwrap() error { return e.Err }

// PolicySource supplies policy snapshots to the adapter
type PolicySource interface {
	Load(ctx context.Context) (PolicySet, error)
}

// DefaultSource always yields the built-in defaults
type DefaultSource struct{}

// Load implements PolicySource
func (DefaultSource) Load(context.Context) (PolicySet, error) {
	return DefaultPolicySet(), nil
}

// FileSource reads policies from a YAML file. Sections or keys missing from
// the file keep their defaults.
type FileSource struct {
	Path string
}

// Load implements PolicySource
func (s FileSource) Load(ctx context.Context) (PolicySet, error) {
	if err := ctx.Err(); err != nil {
		return PolicySet{}, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return PolicySet{}, errors.Wrapf(err, "read policy file %s", s.Path)
	}
	set := DefaultPolicySet()
	if err := yaml.Unmarshal(data, &set); err != nil {
		return PolicySet{}, errors.Wrapf(&MalformedPolicyError{Err: err}, "policy file %s", s.Path)
	}
	return set, nil
}

// Watch reloads adapter policies from this file whenever it is written or
// replaced, whatever source the adapter was built with. It blocks until ctx is cancelled. Reload failures are logged and
// the previous policies stay in effect.
func (s FileSource) Watch(ctx context.Context, a *InfraAdapter, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create policy watcher")
	}
	defer watcher.Close()

	// editors often replace the file, so watch the directory
	dir := filepath.Dir(s.Path)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	target := filepath.Clean(s.Path)
	logger.Debug().Str("path", target).Msg("Watching policy file")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := a.RefreshFrom(ctx, s); err != nil {
				logger.Warn().Err(err).Str("path", target).Msg("Policy reload failed")
				continue
			}
			logger.Info().Str("path", target).Msg("Policies reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Policy watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}
