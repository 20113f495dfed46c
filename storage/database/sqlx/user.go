package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	SchoolID     null.String    `db:"school_id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	Phone        string         `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

var userOrderFields = []string{"name", "username", "email", "is_active", "created_at", "updated_at", "last_login"}

func toUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		SchoolID:     nullID(usr.SchoolID),
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Phone:        usr.Phone,
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) user() user.User {
	return user.User{
		ID:           row.ID,
		SchoolID:     row.SchoolID.String,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email,
		Phone:        row.Phone,
		IsActive:     row.IsActive,
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

type userRepository struct{ repo }

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repo{exec: exec}}
}

func userExistsErr(err error) error {
	if constraint, ok := uniqueConstraint(err); ok {
		switch {
		case strings.Contains(constraint, "username"):
			return user.ErrUsernameExists
		case strings.Contains(constraint, "email"):
			return user.ErrEmailExists
		}
		return user.ErrUserExists
	}
	return err
}

func (r userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}
	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	q := `SELECT username, email FROM users
		WHERE ((username = ? AND username <> '') OR (email = ? AND email <> '')) AND NOT (id::text = ANY(?))`
	if err := r.selectAll(ctx, exec, &taken, q, username, email, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, t := range taken {
		if username != "" && t.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (r userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = core.NewID()
	var row userRow
	q := `INSERT INTO users (id, school_id, name, username, email, phone, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :school_id, :name, :username, :email, :phone, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toUserRow(usr)); err != nil {
		return user.User{}, errors.Wrap(userExistsErr(err), "inserting user")
	}
	return row.user(), nil
}

func userWhere(filter *user.QueryFilter) *where {
	w := &where{}
	if filter == nil {
		return w
	}
	w.eq("school_id", filter.SchoolID)
	w.any("id::text", filter.IDs)
	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		patterns := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			patterns = append(patterns, role+"%")
		}
		w.add("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ANY(?))", pq.Array(patterns))
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		w.add("created_at <= ?", filter.CreatedTo.UTC())
	}
	return w
}

func (r userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	w := userWhere(filter)
	var rows []userRow
	q := "SELECT * FROM users" + w.String() + orderBy(ordering, userOrderFields, "created_at DESC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (r userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := userWhere(filter)
	var n int
	if err := r.get(ctx, exec, &n, "SELECT COUNT(*) FROM users"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return n, nil
}

func (r userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		q   string
		arg []interface{}
	)
	switch {
	case filter.ID != "":
		if !core.IsID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		q, arg = "SELECT * FROM users WHERE id = ?", []interface{}{filter.ID}
	case filter.Username != "":
		q, arg = "SELECT * FROM users WHERE username = ?", []interface{}{filter.Username}
	case filter.Email != "":
		q, arg = "SELECT * FROM users WHERE email = ?", []interface{}{filter.Email}
	case filter.UsernameOrEmail != "":
		q, arg = "SELECT * FROM users WHERE username = ? OR email = ? LIMIT 1", []interface{}{filter.UsernameOrEmail, filter.UsernameOrEmail}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := r.get(ctx, exec, &row, q, arg...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.user(), nil
}

func (r userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	q := `UPDATE users SET school_id = :school_id, name = :name, username = :username, email = :email, phone = :phone,
		is_active = :is_active, roles = :roles, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toUserRow(usr)); err != nil {
		return user.User{}, trapNoRowsErr(userExistsErr(err), user.ErrNotFound, "updating user")
	}
	return row.user(), nil
}

func (r userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	n, err := r.execute(ctx, exec, "DELETE FROM users WHERE id::text = ANY(?)", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return n, nil
}
