package inmemdb

import (
	"context"
	"strings"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/user"
)

var userComparators = comparators[user.User]{
	"name":       func(a, b user.User) int { return cmpFold(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return strings.Compare(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return strings.Compare(a.Email, b.Email) },
	"is_active":  func(a, b user.User) int { return cmpBool(a.IsActive, b.IsActive) },
	"created_at": func(a, b user.User) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b user.User) int { return cmpTime(a.UpdatedAt, b.UpdatedAt) },
	"last_login": func(a, b user.User) int { return cmpTime(a.LastLogin, b.LastLogin) },
}

type userRepository struct {
	db *table[user.User]
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) checkUnique(username, email string, exclIDs ...string) error {
	for _, usr := range repo.db.filter(nil) {
		if core.ContainsString(exclIDs, usr.ID) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}
	return repo.checkUnique(username, email, ids...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.checkUnique(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	usr.ID = core.NewID()
	usr.Roles = copyStrings(usr.Roles)
	repo.db.insert(usr.ID, usr)
	return usr, nil
}

func matchUser(filter *user.QueryFilter) func(user.User) bool {
	return func(usr user.User) bool {
		if filter == nil {
			return true
		}
		if !eq(filter.SchoolID, usr.SchoolID) || !in(filter.IDs, usr.ID) {
			return false
		}
		if filter.Search != "" && !contains(usr.Name, filter.Search) &&
			!contains(usr.Username, filter.Search) && !contains(usr.Email, filter.Search) {
			return false
		}
		if len(filter.Roles) > 0 {
			var ok bool
			for _, role := range filter.Roles {
				if user.HasRolePrefix(usr.Roles, strings.ToLower(role)) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			return false
		}
		if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
			return false
		}
		return true
	}
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.db.filter(matchUser(filter))
	sortRows(users, ordering, userComparators, desc("created_at"))
	return users, nil
}

func (repo *userRepository) CountUsers(_ context.Context, filter *user.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.filter(matchUser(filter))), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var match func(user.User) bool
	switch {
	case filter.ID != "":
		if usr, ok := repo.db.get(filter.ID); ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	case filter.Username != "":
		match = func(u user.User) bool { return u.Username == filter.Username }
	case filter.Email != "":
		match = func(u user.User) bool { return u.Email == filter.Email }
	case filter.UsernameOrEmail != "":
		match = func(u user.User) bool { return u.Username == filter.UsernameOrEmail || u.Email == filter.UsernameOrEmail }
	default:
		return user.User{}, user.ErrNotFound
	}
	if usr, ok := repo.db.find(match); ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.get(usr.ID); !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUnique(usr.Username, usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}
	usr.Roles = copyStrings(usr.Roles)
	repo.db.set(usr.ID, usr)
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, id := range ids {
		if repo.db.remove(id) {
			n++
		}
	}
	return n, nil
}
