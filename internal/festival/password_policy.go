package festival

import (
	"strings"
	"unicode"
)

// PasswordPolicy describes the strength rules applied to new passwords.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
	// MaxRepeat is the longest allowed run of one repeated character.
	MaxRepeat int
	// MaxAscending is the longest allowed run of consecutive ascending characters.
	MaxAscending int
	Banned       []string
}

// DefaultPasswordPolicy returns the rules used for every account.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      10,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
		MaxRepeat:      3,
		MaxAscending:   4,
		Banned:         []string{"password", "123456", "qwerty"},
	}
}

// Check returns one message per violated rule, keyed by rule code.
// An empty result means the password is acceptable.
func (p PasswordPolicy) Check(password, username, fullName string) map[string]string {
	violations := make(map[string]string)
	if strings.TrimSpace(password) == "" {
		violations["blank"] = "password is required"
		return violations
	}

	if len([]rune(password)) < p.MinLength {
		violations["length"] = "password is too short"
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if p.RequireUpper && !upper {
		violations["upper"] = "password needs an uppercase letter"
	}
	if p.RequireLower && !lower {
		violations["lower"] = "password needs a lowercase letter"
	}
	if p.RequireDigit && !digit {
		violations["digit"] = "password needs a digit"
	}
	if p.RequireSpecial && !special {
		violations["special"] = "password needs a special character"
	}

	if p.MaxRepeat > 0 && longestRun(password, func(prev, cur rune) bool { return cur == prev }) > p.MaxRepeat {
		violations["repeat"] = "password repeats a character too often"
	}
	if p.MaxAscending > 0 && longestRun(password, func(prev, cur rune) bool { return cur == prev+1 }) > p.MaxAscending {
		violations["sequence"] = "password contains a long ascending sequence"
	}

	lowered := strings.ToLower(password)
	for _, banned := range p.Banned {
		if lowered == strings.ToLower(banned) {
			violations["banned"] = "password is too common"
			break
		}
	}
	if username != "" && strings.Contains(lowered, strings.ToLower(username)) {
		violations["username"] = "password must not contain the username"
	}
	for _, part := range strings.Fields(strings.ToLower(fullName)) {
		if len([]rune(part)) >= 3 && strings.Contains(lowered, part) {
			violations["name"] = "password must not contain parts of the name"
			break
		}
	}
	return violations
}

func longestRun(s string, continues func(prev, cur rune) bool) int {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(runes); i++ {
		if continues(runes[i-1], runes[i]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
