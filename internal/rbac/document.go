package rbac

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalidDocument = errors.New("invalid permission document")

// Grant is the parsed rule set for one module. Denied actions win over
// granted ones and also restrict global roles.
type Grant struct {
	Allowed map[Action]bool
	Denied  map[Action]bool
}

func (g Grant) allows(a Action) bool {
	return g.Allowed[a] && !g.Denied[a]
}

func (g Grant) denies(a Action) bool {
	return g.Denied[a]
}

// PermissionSet maps module code to its grant.
type PermissionSet map[string]Grant

// ParseDocument accepts three shapes:
//
//	{"assets": ["view", "create"]}
//	{"assets": {"view": true, "delete": false}}
//	{"assets": {"permissions": ["view"], "deny": ["delete"]}}
//
// each optionally nested under a top-level "modules" key. Unknown action names
// are kept so that reads stay tolerant; Validate rejects them on write.
func ParseDocument(raw string) (PermissionSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PermissionSet{}, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if top == nil {
		return PermissionSet{}, nil
	}

	if nested, ok := top["modules"]; ok && isObject(nested) {
		top = nil
		if err := json.Unmarshal(nested, &top); err != nil {
			return nil, fmt.Errorf("%w: modules: %v", ErrInvalidDocument, err)
		}
	}

	set := make(PermissionSet, len(top))
	for module, body := range top {
		if module == "" {
			return nil, fmt.Errorf("%w: empty module key", ErrInvalidDocument)
		}
		grant, err := parseGrant(body)
		if err != nil {
			return nil, fmt.Errorf("%w: module %q: %v", ErrInvalidDocument, module, err)
		}
		set[module] = grant
	}
	return set, nil
}

func parseGrant(body json.RawMessage) (Grant, error) {
	grant := Grant{Allowed: map[Action]bool{}, Denied: map[Action]bool{}}

	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		var actions []string
		if err := json.Unmarshal(trimmed, &actions); err != nil {
			return Grant{}, err
		}
		for _, a := range actions {
			grant.Allowed[Action(a)] = true
		}

	case len(trimmed) > 0 && trimmed[0] == '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return Grant{}, err
		}
		_, hasList := fields["permissions"]
		_, hasDeny := fields["deny"]
		if hasList || hasDeny {
			var doc struct {
				Permissions []string `json:"permissions"`
				Deny        []string `json:"deny"`
			}
			if err := json.Unmarshal(trimmed, &doc); err != nil {
				return Grant{}, err
			}
			for _, a := range doc.Permissions {
				grant.Allowed[Action(a)] = true
			}
			for _, a := range doc.Deny {
				grant.Denied[Action(a)] = true
			}
			break
		}
		for name, v := range fields {
			var allowed bool
			if err := json.Unmarshal(v, &allowed); err != nil {
				return Grant{}, fmt.Errorf("action %q: expected boolean", name)
			}
			if allowed {
				grant.Allowed[Action(name)] = true
			} else {
				grant.Denied[Action(name)] = true
			}
		}

	default:
		return Grant{}, errors.New("expected an action list or object")
	}

	return grant, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Validate rejects unknown actions, and unknown modules when a catalog is given.
func (p PermissionSet) Validate(catalog []string) error {
	known := make(map[string]bool, len(catalog))
	for _, code := range catalog {
		known[code] = true
	}

	for module, grant := range p {
		if len(catalog) > 0 && !known[module] {
			return fmt.Errorf("%w: unknown module %q", ErrInvalidDocument, module)
		}
		for a := range grant.Allowed {
			if !a.Valid() {
				return fmt.Errorf("%w: unknown action %q on module %q", ErrInvalidDocument, a, module)
			}
		}
		for a := range grant.Denied {
			if !a.Valid() {
				return fmt.Errorf("%w: unknown action %q on module %q", ErrInvalidDocument, a, module)
			}
		}
	}
	return nil
}

type storedGrant struct {
	Permissions []Action `json:"permissions"`
	Deny        []Action `json:"deny,omitempty"`
}

// Encode renders the canonical {"module":{"permissions":[...],"deny":[...]}} form.
func (p PermissionSet) Encode() (string, error) {
	out := make(map[string]storedGrant, len(p))
	for module, grant := range p {
		out[module] = storedGrant{
			Permissions: sortedActions(grant.Allowed),
			Deny:        sortedActions(grant.Denied),
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sortedActions(set map[Action]bool) []Action {
	actions := make([]Action, 0, len(set))
	for a, ok := range set {
		if ok {
			actions = append(actions, a)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
