// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/bookpro/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Objects guarded by the policy.
const (
	ObjectBusiness     = "business"
	ObjectService      = "service"
	ObjectAvailability = "availability"
	ObjectBooking      = "booking"
	ObjectBilling      = "billing"
	ObjectMedia        = "media"
	ObjectAudit        = "audit"
)

// Actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

var (
	knownRoles   = []models.Role{models.RoleAdmin, models.RoleOwner, models.RoleStaff, models.RoleClient}
	knownObjects = []string{ObjectBusiness, ObjectService, ObjectAvailability, ObjectBooking, ObjectBilling, ObjectMedia, ObjectAudit}
	knownActions = []string{ActionRead, ActionWrite, ActionDelete}
)

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath overrides the embedded model when the file exists.
	ModelPath string

	// PolicyPath overrides the embedded policy when the file exists.
	PolicyPath string
}

// Enforcer evaluates role permissions. The policy is small and static, so
// every known (role, object, action) is decided once at load time.
type Enforcer struct {
	config    EnforcerConfig
	enforcer  *casbin.SyncedEnforcer
	mu        sync.RWMutex
	decisions map[decisionKey]bool
}

type decisionKey struct {
	role   models.Role
	object string
	action string
}

// NewEnforcer loads the model and policy and builds the decision table.
func NewEnforcer(config EnforcerConfig) (*Enforcer, error) {
	var m model.Model
	var err error
	if config.ModelPath != "" && fileExists(config.ModelPath) {
		m, err = model.NewModelFromFile(config.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if config.PolicyPath != "" && fileExists(config.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(config.PolicyPath))
	} else {
		config.PolicyPath = ""
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{config: config, enforcer: enforcer}
	if err := e.rebuild(); err != nil {
		return nil, err
	}
	return e, nil
}

// loadEmbeddedPolicy parses and loads the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch rule := parts[1:]; parts[0] {
		case "p":
			if len(rule) < 3 {
				return fmt.Errorf("malformed policy line %q", line)
			}
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		case "g":
			if len(rule) < 2 {
				return fmt.Errorf("malformed grouping line %q", line)
			}
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		}
	}
	return nil
}

func (e *Enforcer) rebuild() error {
	decisions := make(map[decisionKey]bool, len(knownRoles)*len(knownObjects)*len(knownActions))
	for _, role := range knownRoles {
		for _, obj := range knownObjects {
			for _, act := range knownActions {
				ok, err := e.enforcer.Enforce(string(role), obj, act)
				if err != nil {
					return fmt.Errorf("evaluate %s %s %s: %w", role, obj, act, err)
				}
				decisions[decisionKey{role, obj, act}] = ok
			}
		}
	}
	e.mu.Lock()
	e.decisions = decisions
	e.mu.Unlock()
	return nil
}

// Enforce reports whether role may perform action on object. Unknown
// combinations fall through to Casbin.
func (e *Enforcer) Enforce(role models.Role, object, action string) (bool, error) {
	e.mu.RLock()
	allowed, ok := e.decisions[decisionKey{role, object, action}]
	e.mu.RUnlock()
	if ok {
		return allowed, nil
	}
	allowed, err := e.enforcer.Enforce(string(role), object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// Reload rereads the policy file and rebuilds the decision table. The
// embedded policy cannot change, so Reload is a no-op without a PolicyPath.
func (e *Enforcer) Reload() error {
	if e.config.PolicyPath == "" {
		return nil
	}
	if err := e.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("reload policy: %w", err)
	}
	return e.rebuild()
}

// Permissions lists the allowed (object, action) pairs for role.
func (e *Enforcer) Permissions(role models.Role) map[string][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string][]string)
	for _, obj := range knownObjects {
		for _, act := range knownActions {
			if e.decisions[decisionKey{role, obj, act}] {
				out[obj] = append(out[obj], act)
			}
		}
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
