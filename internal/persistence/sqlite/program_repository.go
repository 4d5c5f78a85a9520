package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/festival-programs/internal/persistence"
)

const (
	memberProgrammer = "programmer"
	memberStaff      = "staff"
	memberBatchSize  = 500

	programColumns = `id, name, description, start_date, end_date, state, creator_id, created_at, updated_at`
)

// ProgramRepository implements persistence.ProgramRepository using SQLite.
// Programmer and staff sets live in program_members and are rewritten as a
// whole on every update.
type ProgramRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewProgramRepository creates a new SQLite program repository
func NewProgramRepository(pool *ConnectionPool) *ProgramRepository {
	return &ProgramRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateProgram inserts the program and its memberships in one transaction.
func (r *ProgramRepository) CreateProgram(ctx context.Context, program persistence.Program) (persistence.Program, error) {
	if program.ID != 0 || strings.TrimSpace(program.Name) == "" || program.CreatorID <= 0 {
		return persistence.Program{}, persistence.ErrConstraintViolation
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		const query = `
			INSERT INTO programs (name, description, start_date, end_date, state, creator_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		result, err := tx.ExecContext(ctx, query,
			program.Name,
			program.Description,
			formatTime(program.StartDate),
			formatTime(program.EndDate),
			program.State,
			program.CreatorID,
			formatTime(program.CreatedAt),
			formatTime(program.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if program.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read program id: %w", err)
		}
		return r.writeMembers(ctx, tx, program)
	})
	if err != nil {
		return persistence.Program{}, err
	}
	return cloneProgram(program), nil
}

// UpdateProgram overwrites the program row and replaces its memberships.
func (r *ProgramRepository) UpdateProgram(ctx context.Context, program persistence.Program) (persistence.Program, error) {
	if program.ID <= 0 {
		return persistence.Program{}, persistence.ErrNotFound
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		const query = `
			UPDATE programs
			SET name = ?, description = ?, start_date = ?, end_date = ?, state = ?, updated_at = ?
			WHERE id = ?
		`
		result, err := tx.ExecContext(ctx, query,
			program.Name,
			program.Description,
			formatTime(program.StartDate),
			formatTime(program.EndDate),
			program.State,
			formatTime(program.UpdatedAt),
			program.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM program_members WHERE program_id = ?`, program.ID); err != nil {
			return r.mapper.MapError(err)
		}
		return r.writeMembers(ctx, tx, program)
	})
	if err != nil {
		return persistence.Program{}, err
	}
	return r.GetProgram(ctx, program.ID)
}

// GetProgram loads a program with its role sets.
func (r *ProgramRepository) GetProgram(ctx context.Context, id int64) (persistence.Program, error) {
	if id <= 0 {
		return persistence.Program{}, persistence.ErrNotFound
	}

	program, err := r.scanProgram(r.helper.QueryRow(ctx, `SELECT `+programColumns+` FROM programs WHERE id = ?`, id))
	if err != nil {
		return persistence.Program{}, err
	}

	members, err := r.loadMembers(ctx, `SELECT program_id, user_id, member_role FROM program_members WHERE program_id = ?`, id)
	if err != nil {
		return persistence.Program{}, err
	}
	applyMembers(&program, members[program.ID])
	return program, nil
}

// ProgramNameExists reports whether another program already uses name,
// compared case-insensitively.
func (r *ProgramRepository) ProgramNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists int
	err := r.helper.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM programs WHERE name = ? AND id <> ?)`,
		strings.TrimSpace(name), excludeID,
	).Scan(&exists)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return exists == 1, nil
}

// ListPrograms returns the programs matching filter ordered by start date,
// name and id.
func (r *ProgramRepository) ListPrograms(ctx context.Context, filter persistence.ProgramFilter) ([]persistence.Program, error) {
	var (
		clauses []string
		args    []any
	)
	if name := strings.TrimSpace(filter.NameContains); name != "" {
		clauses = append(clauses, `name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(name)+"%")
	}
	if filter.State != "" {
		clauses = append(clauses, `state = ?`)
		args = append(args, filter.State)
	}
	if filter.StartsAfter != nil {
		clauses = append(clauses, `start_date >= ?`)
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		clauses = append(clauses, `end_date <= ?`)
		args = append(args, formatTime(*filter.EndsBefore))
	}

	query := `SELECT ` + programColumns + ` FROM programs`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_date ASC, name ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var programs []persistence.Program
	for rows.Next() {
		program, err := r.scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, program)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	if len(programs) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(programs))
	for i, program := range programs {
		ids[i] = program.ID
	}
	members, err := r.membersOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range programs {
		applyMembers(&programs[i], members[programs[i].ID])
	}
	return programs, nil
}

// membersOf loads the memberships of the given programs only, in batches
// that stay below the SQLite bound parameter limit.
func (r *ProgramRepository) membersOf(ctx context.Context, ids []int64) (map[int64][]member, error) {
	out := make(map[int64][]member, len(ids))
	for start := 0; start < len(ids); start += memberBatchSize {
		end := min(start+memberBatchSize, len(ids))
		batch := ids[start:end]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batch)), ", ")
		members, err := r.loadMembers(ctx,
			`SELECT program_id, user_id, member_role FROM program_members WHERE program_id IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return nil, err
		}
		for programID, list := range members {
			out[programID] = list
		}
	}
	return out, nil
}

// DeleteProgram removes a program; memberships and screenings cascade.
func (r *ProgramRepository) DeleteProgram(ctx context.Context, id int64) error {
	if id <= 0 {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, `DELETE FROM programs WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *ProgramRepository) writeMembers(ctx context.Context, tx *sql.Tx, program persistence.Program) error {
	const insert = `INSERT INTO program_members (program_id, user_id, member_role) VALUES (?, ?, ?)`
	for _, id := range program.Programmers {
		if _, err := tx.ExecContext(ctx, insert, program.ID, id, memberProgrammer); err != nil {
			return r.mapper.MapError(err)
		}
	}
	for _, id := range program.Staff {
		if _, err := tx.ExecContext(ctx, insert, program.ID, id, memberStaff); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

type member struct {
	userID int64
	role   string
}

func (r *ProgramRepository) loadMembers(ctx context.Context, query string, args ...any) (map[int64][]member, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	out := make(map[int64][]member)
	for rows.Next() {
		var (
			programID int64
			m         member
		)
		if err := rows.Scan(&programID, &m.userID, &m.role); err != nil {
			return nil, r.mapper.MapError(err)
		}
		out[programID] = append(out[programID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return out, nil
}

func applyMembers(program *persistence.Program, members []member) {
	program.Programmers = nil
	program.Staff = nil
	for _, m := range members {
		switch m.role {
		case memberProgrammer:
			program.Programmers = append(program.Programmers, m.userID)
		case memberStaff:
			program.Staff = append(program.Staff, m.userID)
		}
	}
	sortIDs(program.Programmers)
	sortIDs(program.Staff)
}

func (r *ProgramRepository) scanProgram(row rowScanner) (persistence.Program, error) {
	var (
		program                    persistence.Program
		startStr, endStr           string
		createdAtStr, updatedAtStr string
	)
	err := row.Scan(
		&program.ID,
		&program.Name,
		&program.Description,
		&startStr,
		&endStr,
		&program.State,
		&program.CreatorID,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Program{}, persistence.ErrNotFound
		}
		return persistence.Program{}, r.mapper.MapError(err)
	}

	if program.StartDate, err = parseTime("start_date", startStr); err != nil {
		return persistence.Program{}, err
	}
	if program.EndDate, err = parseTime("end_date", endStr); err != nil {
		return persistence.Program{}, err
	}
	if program.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Program{}, err
	}
	if program.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Program{}, err
	}
	return program, nil
}

func cloneProgram(program persistence.Program) persistence.Program {
	clone := program
	clone.Programmers = append([]int64(nil), program.Programmers...)
	clone.Staff = append([]int64(nil), program.Staff...)
	sortIDs(clone.Programmers)
	sortIDs(clone.Staff)
	return clone
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
