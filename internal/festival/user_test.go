package festival

import (
	"errors"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	valid := []string{"alice", "Bob_99", "a2345678901234567890"}
	for _, name := range valid {
		if err := ValidateUsername(name); err != nil {
			t.Fatalf("%q rejected: %v", name, err)
		}
	}

	invalidNames := []string{"", "abcd", "1alice", "_alice", "alice-b", "a23456789012345678901"}
	for _, name := range invalidNames {
		if err := ValidateUsername(name); !errors.Is(err, ErrValidation) {
			t.Fatalf("%q: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestUserSessionRules(t *testing.T) {
	t.Parallel()

	t.Run("lock is independent of active", func(t *testing.T) {
		t.Parallel()

		u := User{ID: 1, Username: "alice", Active: true}
		for i := 0; i < LockThreshold-1; i++ {
			u.RegisterFailure(baseTime)
		}
		if u.Locked() {
			t.Fatalf("locked before threshold")
		}
		u.RegisterFailure(baseTime)
		if !u.Locked() || !u.Active {
			t.Fatalf("expected locked and still active, got locked=%v active=%v", u.Locked(), u.Active)
		}
		u.RegisterLogin("jti", baseTime)
		if u.Locked() || u.CurrentTokenID != "jti" {
			t.Fatalf("login did not reset state: %+v", u)
		}
	})

	t.Run("rename clears session only on change", func(t *testing.T) {
		t.Parallel()

		u := User{ID: 1, Username: "alice", CurrentTokenID: "jti", Active: true}
		changed, err := u.Rename("alice", baseTime)
		if err != nil || changed {
			t.Fatalf("same name: changed=%v err=%v", changed, err)
		}
		if u.CurrentTokenID != "jti" {
			t.Fatalf("token cleared without rename")
		}
		changed, err = u.Rename("alice_2", baseTime)
		if err != nil || !changed {
			t.Fatalf("rename: changed=%v err=%v", changed, err)
		}
		if u.CurrentTokenID != "" || !u.Active {
			t.Fatalf("expected cleared token and active account, got %+v", u)
		}
		if _, err := u.Rename("x", baseTime); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestRoles(t *testing.T) {
	t.Parallel()

	for _, role := range Roles() {
		parsed, err := ParseRole(role.String())
		if err != nil || parsed != role {
			t.Fatalf("round trip of %s failed: %v %v", role, parsed, err)
		}
		if role.IsAdmin() != (role == RoleAdmin) {
			t.Fatalf("unexpected admin flag for %s", role)
		}
	}
	if _, err := ParseRole("visitor"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if Role(0).Valid() {
		t.Fatalf("zero role must be invalid")
	}
}

func TestPasswordPolicy(t *testing.T) {
	t.Parallel()

	policy := DefaultPasswordPolicy()

	if v := policy.Check("Tr0ub4dor&Zx", "alice", "Alice Smith"); len(v) != 0 {
		t.Fatalf("expected strong password to pass, got %v", v)
	}

	cases := map[string]struct {
		password, username, fullName string
	}{
		"blank":    {"   ", "", ""},
		"length":   {"Ab1!x", "", ""},
		"upper":    {"abcdef1!xz", "", ""},
		"lower":    {"ABCDEF1!XZ", "", ""},
		"digit":    {"Abcdefg!xz", "", ""},
		"special":  {"Abcdefg1xz", "", ""},
		"repeat":   {"Aaaaa1!xyq", "", ""},
		"sequence": {"Abcdef1!xz", "", ""},
		"username": {"Xalice_91!", "alice", ""},
		"name":     {"Smith#2024x", "", "Alice Smith"},
	}
	for code, tc := range cases {
		v := policy.Check(tc.password, tc.username, tc.fullName)
		if _, ok := v[code]; !ok {
			t.Fatalf("expected %s violation for %q, got %v", code, tc.password, v)
		}
	}
}
