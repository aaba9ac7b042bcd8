package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigtable"
)

// GetUserByID returns the user stored under the given id, or nil if no such
// row exists. A missing row is normal control flow, not an error.
func (s *BigtableStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	key := userKey(id)
	row, err := s.table.ReadRow(ctx, key, bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return nil, fmt.Errorf("failed to read user row: %w", err)
	}
	if len(row) == 0 {
		return nil, nil
	}
	return decodeUser(key, row)
}

// GetUserByGoogleID finds a user by the identity provider's subject id.
// There is no secondary index, so this scans every user row and compares
// client-side; fine at current volumes. An index row
// (user_by_google_id#<gid> -> id) maintained on write is the upgrade path
// if the user table ever grows past that.
func (s *BigtableStore) GetUserByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return s.findUser(ctx, "google_id", googleID)
}

// GetUserByEmail finds a user by email, with the same scan-and-filter
// caveat as GetUserByGoogleID.
func (s *BigtableStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, "email", email)
}

func (s *BigtableStore) findUser(ctx context.Context, field, want string) (*User, error) {
	var (
		found     *User
		decodeErr error
	)
	err := s.table.ReadRows(ctx, bigtable.PrefixRange(kindPrefix(kindUser)), func(r bigtable.Row) bool {
		if flattenRow(r)[field] != want {
			return true
		}
		found, decodeErr = decodeUser(r.Key(), r)
		return false // first match wins
	}, bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return nil, fmt.Errorf("failed to scan user rows: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return found, nil
}

// CreateUser writes a new user row and returns the constructed record.
// Uniqueness of email and google_id is expected but not enforced here: two
// racing first-logins for the same identity can produce two rows. The
// provisioning call site reads before writing, which narrows that window
// without closing it.
func (s *BigtableStore) CreateUser(ctx context.Context, name, email, googleID string, picture *string) (*User, error) {
	id := s.ids.next()
	now := s.now().UTC()
	nowCell := []byte(encodeTime(now))

	mut := bigtable.NewMutation()
	ts := bigtable.Now()
	mut.Set(userDataFamily, "name", ts, []byte(name))
	mut.Set(userDataFamily, "email", ts, []byte(email))
	mut.Set(userDataFamily, "google_id", ts, []byte(googleID))
	if picture != nil {
		mut.Set(userDataFamily, "picture", ts, []byte(*picture))
	}
	mut.Set(metadataFamily, "created_at", ts, nowCell)
	mut.Set(metadataFamily, "updated_at", ts, nowCell)

	if err := s.table.Apply(ctx, userKey(id), mut); err != nil {
		return nil, fmt.Errorf("failed to write user row: %w", err)
	}

	updated := now
	return &User{
		ID:        id,
		Name:      name,
		Email:     email,
		GoogleID:  googleID,
		Picture:   picture,
		CreatedAt: now,
		UpdatedAt: &updated,
	}, nil
}

// UpdateUser rewrites only the supplied fields plus updated_at, then reads
// the row back. Returns nil if the user does not exist; nothing is written
// in that case.
func (s *BigtableStore) UpdateUser(ctx context.Context, id int64, name, picture *string) (*User, error) {
	existing, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	mut := bigtable.NewMutation()
	ts := bigtable.Now()
	if name != nil {
		mut.Set(userDataFamily, "name", ts, []byte(*name))
	}
	if picture != nil {
		mut.Set(userDataFamily, "picture", ts, []byte(*picture))
	}
	mut.Set(metadataFamily, "updated_at", ts, []byte(encodeTime(s.now().UTC())))

	if err := s.table.Apply(ctx, userKey(id), mut); err != nil {
		return nil, fmt.Errorf("failed to update user row: %w", err)
	}
	return s.GetUserByID(ctx, id)
}
