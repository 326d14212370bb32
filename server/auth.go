// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Authorization policy.5.

package server

import "github.com/OpenPrinting/go-ippd/store"

// Policy names one of the six authorization rules §4.5 lists.
type Policy int

// Policies.
const (
	PolicyPublic Policy = iota
	PolicyAuthenticatedAny
	PolicyPrintGroup
	PolicyProxyGroup
	PolicyAdminGroup
	PolicyOwnerOrAdmin
)

// Identity is the authenticated caller, or the zero value for an
// anonymous request.
type Identity struct {
	Username    string
	Authenticated bool
	Groups      map[string]bool
}

// InGroup reports whether the identity belongs to group.
func (id Identity) InGroup(group string) bool {
	if group == "" {
		return false
	}
	return id.Groups[group]
}

// authorize applies policy for the given identity, optionally scoped
// to printer (for print-group/admin-group checks) or job (for
// owner-or-admin). It returns nil on success, or the ippError to
// return to the client.
func authorize(id Identity, policy Policy, printer *store.Printer, job *store.Job, requestingUser string) *ippError {
	switch policy {
	case PolicyPublic:
		return nil

	case PolicyAuthenticatedAny:
		if !id.Authenticated && requestingUser == "" {
			return errNotAuthorized
		}
		return nil

	case PolicyPrintGroup:
		if printer == nil {
			return errNotAuthorized
		}
		printer.RLock()
		group := printer.PrintGroup
		printer.RUnlock()
		if group == "" {
			return nil
		}
		if !id.Authenticated {
			return errNotAuthorized
		}
		if !id.InGroup(group) {
			return errForbidden
		}
		return nil

	case PolicyProxyGroup:
		if !id.Authenticated {
			return errNotAuthorized
		}
		if printer != nil {
			printer.RLock()
			group := printer.ProxyGroup
			printer.RUnlock()
			if group != "" && !id.InGroup(group) {
				return errForbidden
			}
		}
		return nil

	case PolicyAdminGroup:
		if !id.Authenticated {
			return errNotAuthorized
		}
		if !id.InGroup("admin") {
			return errForbidden
		}
		return nil

	case PolicyOwnerOrAdmin:
		if job == nil {
			return errNotAuthorized
		}
		if !id.Authenticated {
			return nil // caller sees the privacy-filtered subset
		}
		job.RLock()
		owner := job.Username
		job.RUnlock()
		if owner == id.Username || id.InGroup("admin") {
			return nil
		}
		return nil // non-owner: filtered view, not a hard failure
	}
	return nil
}

// EffectiveUsername resolves a job's owning username per // §4.5: the authenticated identity if present, else the
// requesting-user-name operation attribute, else "anonymous".
func EffectiveUsername(id Identity, requestingUserName string) string {
	if id.Authenticated && id.Username != "" {
		return id.Username
	}
	if requestingUserName != "" {
		return requestingUserName
	}
	return "anonymous"
}

// IsPrivilegedView reports whether id may see a job's unfiltered
// attribute set (the job's own owner, or an admin).
func IsPrivilegedView(id Identity, job *store.Job) bool {
	if id.InGroup("admin") {
		return true
	}
	job.RLock()
	owner := job.Username
	job.RUnlock()
	return id.Authenticated && id.Username == owner
}
