// Package auth resolves callers' permissions with Casbin RBAC.
package auth

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/semmidev/harmony/internal/config"
	"github.com/semmidev/harmony/internal/domain"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

type Logger interface {
	Warnf(template string, args ...interface{})
}

type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
	logger   Logger
}

// New builds the enforcer from the policy file when one is configured,
// otherwise from the embedded policy, then assigns the configured roles.
func New(cfg *config.AuthConfig, logger Logger) (*Authorizer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyFile != "" {
		if _, statErr := os.Stat(cfg.PolicyFile); statErr != nil {
			return nil, fmt.Errorf("policy file: %w", statErr)
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyFile))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	for _, u := range cfg.Users {
		for _, role := range u.Roles {
			if _, err := enforcer.AddGroupingPolicy(u.ID, role); err != nil {
				return nil, fmt.Errorf("failed to assign role %s to %s: %w", role, u.ID, err)
			}
		}
	}
	if cfg.SystemUser != "" {
		if _, err := enforcer.AddGroupingPolicy(cfg.SystemUser, "admin"); err != nil {
			return nil, fmt.Errorf("failed to assign system user: %w", err)
		}
	}

	return &Authorizer{enforcer: enforcer, logger: logger}, nil
}

func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) >= 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) >= 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		}
	}
	return nil
}

// For returns the AuthContext of one caller.
func (a *Authorizer) For(userID string) domain.AuthContext {
	return &subject{userID: userID, authz: a}
}

func (a *Authorizer) Allowed(userID, resource, action string) bool {
	ok, err := a.enforcer.Enforce(userID, resource, action)
	if err != nil {
		if a.logger != nil {
			a.logger.Warnf("[authz] enforcement failed for %s %s/%s: %v", userID, resource, action, err)
		}
		return false
	}
	return ok
}

type subject struct {
	userID string
	authz  *Authorizer
}

func (s *subject) CurrentUserID() string { return s.userID }

func (s *subject) HasPermission(resource, action string) bool {
	return s.authz.Allowed(s.userID, resource, action)
}
