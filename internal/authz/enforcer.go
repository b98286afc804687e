// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/fieldsync/internal/auth"
	"github.com/tomtom215/fieldsync/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Objects guarded by the policy.
const (
	ObjectProjects = models.TableProjects
	ObjectChambers = models.TableChambers
	ObjectQueue    = "queue"
	ObjectSync     = "sync"
)

// Actions.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionRun    = "run"
	ActionClear  = "clear"
)

// EnforcerConfig configures an Enforcer.
type EnforcerConfig struct {
	// PolicyPath overrides the embedded policy with a CSV file.
	PolicyPath string
}

// Enforcer answers role permission questions from a Casbin RBAC policy.
type Enforcer struct {
	config   EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *decisionCache
}

// NewEnforcer loads the embedded model and either the embedded policy or
// the one at cfg.PolicyPath.
func NewEnforcer(cfg EnforcerConfig) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" {
		if _, statErr := os.Stat(cfg.PolicyPath); statErr != nil {
			return nil, fmt.Errorf("policy file: %w", statErr)
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	return &Enforcer{config: cfg, enforcer: enforcer, cache: newDecisionCache()}, nil
}

// loadPolicy parses policy CSV lines into enforcer.
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

		switch ptype, rule := parts[0], parts[1:]; ptype {
		case "p":
			if len(rule) != 3 {
				return fmt.Errorf("policy line %q: want 3 fields", line)
			}
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		case "g":
			if len(rule) != 2 {
				return fmt.Errorf("grouping line %q: want 2 fields", line)
			}
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		default:
			return fmt.Errorf("policy line %q: unknown type %q", line, ptype)
		}
	}
	return nil
}

// Enforce reports whether role may perform action on object.
func (e *Enforcer) Enforce(role auth.Role, object, action string) (bool, error) {
	start := time.Now()
	if allowed, ok := e.cache.get(role, object, action); ok {
		recordDecision(role, object, action, allowed, true, time.Since(start))
		return allowed, nil
	}

	allowed, err := e.enforcer.Enforce(string(role), object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	e.cache.set(role, object, action, allowed)
	recordDecision(role, object, action, allowed, false, time.Since(start))
	return allowed, nil
}

// CanEnqueue reports whether role may queue a mutation of type t. It needs
// write access to the target record kind and to the queue.
func (e *Enforcer) CanEnqueue(role auth.Role, t models.MutationType) (bool, error) {
	if !t.Valid() {
		return false, fmt.Errorf("%w: %q", models.ErrUnknownMutationType, string(t))
	}
	ok, err := e.Enforce(role, t.Table(), t.Action())
	if err != nil || !ok {
		return false, err
	}
	return e.Enforce(role, ObjectQueue, ActionCreate)
}

// Permissions lists the allowed (object, action) pairs for role, expanded
// across the guarded objects and actions. The UI uses it to hide controls.
func (e *Enforcer) Permissions(role auth.Role) (map[string][]string, error) {
	objects := []string{ObjectProjects, ObjectChambers, ObjectQueue, ObjectSync}
	actions := []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionRun, ActionClear}

	out := make(map[string][]string, len(objects))
	for _, obj := range objects {
		for _, act := range actions {
			ok, err := e.Enforce(role, obj, act)
			if err != nil {
				return nil, err
			}
			if ok {
				out[obj] = append(out[obj], act)
			}
		}
	}
	return out, nil
}

// LoadPolicy reloads the policy file and drops cached decisions. It is a
// no-op for the embedded policy.
func (e *Enforcer) LoadPolicy() error {
	if e.config.PolicyPath == "" {
		return nil
	}
	if err := e.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("reload policy: %w", err)
	}
	e.cache.clear()
	return nil
}
