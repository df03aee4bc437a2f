// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// PasswordPolicy defines requirements for account passwords.
type PasswordPolicy struct {
	MinLength             int
	RequireUppercase      bool
	RequireLowercase      bool
	RequireDigit          bool
	MaxConsecutiveRepeats int
	ForbidCommonPasswords bool

	// ForbidEmailSimilarity rejects passwords containing the email local part.
	ForbidEmailSimilarity bool
}

// StaffPasswordPolicy applies to admin, owner and staff accounts.
func StaffPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:             10,
		RequireUppercase:      true,
		RequireLowercase:      true,
		RequireDigit:          true,
		MaxConsecutiveRepeats: 3,
		ForbidCommonPasswords: true,
		ForbidEmailSimilarity: true,
	}
}

// ClientPasswordPolicy applies to self-registered client accounts.
func ClientPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:             8,
		RequireLowercase:      true,
		RequireDigit:          true,
		MaxConsecutiveRepeats: 4,
		ForbidCommonPasswords: true,
		ForbidEmailSimilarity: true,
	}
}

// Validate returns every rule the password breaks. An empty slice means it passed.
func (p PasswordPolicy) Validate(password, email string) []string {
	problems := make([]string, 0)

	if len(password) < p.MinLength {
		problems = append(problems,
			fmt.Sprintf("password must be at least %d characters (got %d)", p.MinLength, len(password)))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if p.RequireUppercase && !hasUpper {
		problems = append(problems, "password must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		problems = append(problems, "password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		problems = append(problems, "password must contain at least one digit")
	}

	if p.MaxConsecutiveRepeats > 0 && maxConsecutiveRepeats(password) > p.MaxConsecutiveRepeats {
		problems = append(problems,
			fmt.Sprintf("password cannot have more than %d consecutive repeated characters", p.MaxConsecutiveRepeats))
	}

	if p.ForbidCommonPasswords && commonPasswords[strings.ToLower(password)] {
		problems = append(problems, "password is too common and easily guessable")
	}

	if p.ForbidEmailSimilarity && containsEmailLocalPart(password, email) {
		problems = append(problems, "password must not contain your email address")
	}

	return problems
}

// Check returns a single error joining all violations, or nil.
func (p PasswordPolicy) Check(password, email string) error {
	if problems := p.Validate(password, email); len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func maxConsecutiveRepeats(password string) int {
	maxRepeats := 0
	current := 0
	var last rune
	for i, r := range password {
		if i > 0 && r == last {
			current++
		} else {
			current = 1
		}
		if current > maxRepeats {
			maxRepeats = current
		}
		last = r
	}
	return maxRepeats
}

func containsEmailLocalPart(password, email string) bool {
	local, _, found := strings.Cut(strings.ToLower(email), "@")
	if !found || len(local) < 4 {
		return false
	}
	return strings.Contains(strings.ToLower(password), local)
}

var commonPasswords = map[string]bool{
	"123456":       true,
	"12345678":     true,
	"123456789":    true,
	"1234567890":   true,
	"password":     true,
	"password1":    true,
	"password123":  true,
	"passw0rd":     true,
	"p@ssw0rd":     true,
	"qwerty":       true,
	"qwerty123":    true,
	"qwertyuiop":   true,
	"abc123":       true,
	"abcd1234":     true,
	"1q2w3e4r":     true,
	"letmein":      true,
	"letmein123":   true,
	"welcome":      true,
	"welcome1":     true,
	"welcome123":   true,
	"iloveyou":     true,
	"sunshine":     true,
	"changeme":     true,
	"admin":        true,
	"admin123":     true,
	"test123":      true,
	"testing123":   true,
	"bookpro":      true,
	"bookpro123":   true,
	"booking":      true,
	"booking123":   true,
	"appointment":  true,
	"appointment1": true,
	"salon123":     true,
	"barber123":    true,
}
