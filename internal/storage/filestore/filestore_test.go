package filestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sqlscript/internal/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "download"))
	require.NoError(t, err)
	return s
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestSaveAndOpen(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	body := "INSERT INTO users (id) VALUES (1);\nINSERT INTO users (id) VALUES (2);"
	saved, err := s.Save(ctx, core.Artifact{
		ID:         "abc",
		Name:       "users_inserts.sql",
		TableName:  "users",
		Mode:       core.ModePlain,
		Statements: 2,
	}, body)
	require.NoError(t, err)

	assert.Equal(t, "users_inserts.sql", saved.Name)
	assert.Equal(t, int64(len(body)), saved.Size)
	assert.False(t, saved.CreatedAt.IsZero())

	rc, a, err := s.Open(ctx, "users_inserts.sql")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	assert.Equal(t, "abc", a.ID)
	assert.Equal(t, "users", a.TableName)
	assert.Equal(t, 2, a.Statements)
}

func TestSave_OverwritesExisting(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, core.Artifact{Name: "t.sql"}, "old")
	require.NoError(t, err)
	_, err = s.Save(ctx, core.Artifact{Name: "t.sql"}, "new")
	require.NoError(t, err)

	rc, _, err := s.Open(ctx, "t.sql")
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "new", string(got))
}

func TestSave_SanitizesName(t *testing.T) {
	s := newStore(t)

	a, err := s.Save(context.Background(), core.Artifact{Name: "../../etc/my table.sql"}, "x")
	require.NoError(t, err)

	assert.Equal(t, "my_table.sql", a.Name)
	_, err = os.Stat(filepath.Join(s.Dir(), "my_table.sql"))
	assert.NoError(t, err)
}

func TestOpen_NotFound(t *testing.T) {
	s := newStore(t)

	tests := []string{"missing.sql", "../secret", "", ".hidden"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Open(context.Background(), name)
			assert.True(t, errors.Is(err, core.ErrArtifactNotFound), "got %v", err)
		})
	}
}

func TestOpen_FileWithoutMetadata(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "manual.sql"), []byte("SELECT 1;"), 0o644))

	rc, a, err := s.Open(context.Background(), "manual.sql")
	require.NoError(t, err)
	rc.Close()

	assert.Equal(t, "manual.sql", a.Name)
	assert.Equal(t, int64(9), a.Size)
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"a.sql", "b.sql", "c.sql"} {
		_, err := s.Save(ctx, core.Artifact{Name: name, CreatedAt: base.Add(time.Duration(i) * time.Hour)}, "x")
		require.NoError(t, err)
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.sql", all[0].Name)
	assert.Equal(t, "a.sql", all[2].Name)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "users_inserts.sql", want: "users_inserts.sql"},
		{in: "dir/sub/out.sql", want: "out.sql"},
		{in: `C:\temp\out.sql`, want: "out.sql"},
		{in: "my file.sql", want: "my_file.sql"},
		{in: "ünï$code.sql", want: "ncode.sql"},
		{in: "..", wantErr: true},
		{in: "", wantErr: true},
		{in: "x.sql.meta.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SafeName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
