package festival

import "sort"

// RoleSet holds a program's membership: a fixed creator, the programmers and
// the staff. Programmers and staff never overlap and the creator is always a
// programmer.
type RoleSet struct {
	creator     int64
	programmers map[int64]struct{}
	staff       map[int64]struct{}
}

// NewRoleSet returns a set whose only member is the creator, enrolled as programmer.
func NewRoleSet(creatorID int64) RoleSet {
	return RoleSet{
		creator:     creatorID,
		programmers: map[int64]struct{}{creatorID: {}},
		staff:       map[int64]struct{}{},
	}
}

// RehydrateRoleSet rebuilds a set from storage. The creator is re-added to the
// programmers and removed from staff so a damaged record cannot break the
// invariants.
func RehydrateRoleSet(creatorID int64, programmers, staff []int64) RoleSet {
	rs := NewRoleSet(creatorID)
	for _, id := range programmers {
		rs.programmers[id] = struct{}{}
	}
	for _, id := range staff {
		if _, ok := rs.programmers[id]; ok {
			continue
		}
		rs.staff[id] = struct{}{}
	}
	return rs
}

func (r RoleSet) Creator() int64 { return r.creator }

func (r RoleSet) IsProgrammer(userID int64) bool {
	_, ok := r.programmers[userID]
	return ok
}

func (r RoleSet) IsStaff(userID int64) bool {
	_, ok := r.staff[userID]
	return ok
}

// IsMember reports whether the user is either programmer or staff.
func (r RoleSet) IsMember(userID int64) bool {
	return r.IsProgrammer(userID) || r.IsStaff(userID)
}

// Programmers returns the programmer ids in ascending order.
func (r RoleSet) Programmers() []int64 { return sortedIDs(r.programmers) }

// Staff returns the staff ids in ascending order.
func (r RoleSet) Staff() []int64 { return sortedIDs(r.staff) }

func (r *RoleSet) addProgrammer(userID int64) error {
	if userID <= 0 {
		return invalid("user_id", "user is required")
	}
	if r.IsStaff(userID) {
		return &MembershipError{UserID: userID, Kind: ErrConflict, Detail: "is already STAFF"}
	}
	if r.IsProgrammer(userID) {
		return &MembershipError{UserID: userID, Kind: ErrAlreadyMember, Detail: "is already PROGRAMMER"}
	}
	r.programmers[userID] = struct{}{}
	return nil
}

func (r *RoleSet) addStaff(userID int64) error {
	if userID <= 0 {
		return invalid("user_id", "user is required")
	}
	if r.IsProgrammer(userID) {
		return &MembershipError{UserID: userID, Kind: ErrConflict, Detail: "is already PROGRAMMER"}
	}
	if r.IsStaff(userID) {
		return &MembershipError{UserID: userID, Kind: ErrAlreadyMember, Detail: "is already STAFF"}
	}
	r.staff[userID] = struct{}{}
	return nil
}

func (r *RoleSet) removeProgrammer(userID int64) error {
	if userID == r.creator {
		return &MembershipError{UserID: userID, Kind: ErrInvariant, Detail: "is the creator and must stay PROGRAMMER"}
	}
	if !r.IsProgrammer(userID) {
		return &MembershipError{UserID: userID, Kind: ErrNotMember, Detail: "is not a PROGRAMMER"}
	}
	delete(r.programmers, userID)
	return nil
}

func (r *RoleSet) removeStaff(userID int64) error {
	if !r.IsStaff(userID) {
		return &MembershipError{UserID: userID, Kind: ErrNotMember, Detail: "is not STAFF"}
	}
	delete(r.staff, userID)
	return nil
}

func (r RoleSet) clone() RoleSet {
	return RehydrateRoleSet(r.creator, r.Programmers(), r.Staff())
}

func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
