package credentials

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSameSite(t *testing.T) {
	tests := []struct {
		raw  string
		want SameSite
	}{
		{"Lax", SameSiteLax},
		{"lax", SameSiteLax},
		{"STRICT", SameSiteStrict},
		{"none", SameSiteNone},
		{"", SameSiteLax},
		{"unspecified", SameSiteLax},
		{"no_restriction", SameSiteLax},
		{"whatever", SameSiteLax},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSameSite(tt.raw))
		})
	}
}

func TestSameSite_UnmarshalJSON(t *testing.T) {
	var records []struct {
		SameSite SameSite `json:"sameSite"`
	}
	err := json.Unmarshal([]byte(`[{"sameSite":null},{"sameSite":"strict"},{"sameSite":3},{}]`), &records)
	require.NoError(t, err)

	assert.Equal(t, SameSiteLax, records[0].SameSite)
	assert.Equal(t, SameSiteStrict, records[1].SameSite)
	assert.Equal(t, SameSiteLax, records[2].SameSite)
	assert.Equal(t, SameSite(""), records[3].SameSite)
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "cookies.json"))

	_, err := store.Load()
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStore_SaveLoadNormalises(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.json")
	store := NewFileStore(path)

	err := store.Save([]Cookie{
		{Name: "MoodleSession", Value: "abc", Domain: "moodle.example.edu", Path: "/", Expires: -1, HTTPOnly: true, Secure: true, SameSite: SameSiteNone},
		{Name: "lang", Value: "zh_cn", Domain: "moodle.example.edu"},
	})
	require.NoError(t, err)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a successful save")

	cookies, err := store.Load()
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "MoodleSession", cookies[0].Name)
	assert.Equal(t, SameSiteNone, cookies[0].SameSite)
	assert.Equal(t, "/", cookies[1].Path)
	assert.Equal(t, SameSiteLax, cookies[1].SameSite)
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path).Load()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFileStore_DefaultPath(t *testing.T) {
	assert.Equal(t, "cookies.json", NewFileStore("").Path())
}

const browserExport = `[
  {"name":"MoodleSession","value":"s1","domain":"moodle.example.edu.cn","path":"/","expirationDate":1893456000.5,"httpOnly":true,"secure":true,"sameSite":"no_restriction"},
  {"name":"CASTGC","value":"t1","domain":".sso.example.edu.cn","hostOnly":false,"httpOnly":true,"secure":false,"sameSite":null},
  {"name":"tracker","value":"x","domain":".ads.example.com","path":"/","sameSite":"lax"}
]`

func TestImport_ConvertsExportFormat(t *testing.T) {
	cookies, err := Import(strings.NewReader(browserExport), ImportOptions{})
	require.NoError(t, err)
	require.Len(t, cookies, 3)

	assert.Equal(t, 1893456000.5, cookies[0].Expires)
	assert.Equal(t, SameSiteLax, cookies[0].SameSite)

	assert.Equal(t, "/", cookies[1].Path)
	assert.Equal(t, -1.0, cookies[1].Expires)
	assert.Equal(t, SameSiteLax, cookies[1].SameSite)
	assert.True(t, cookies[1].HTTPOnly)
}

func TestImport_SiteFilter(t *testing.T) {
	cookies, err := Import(strings.NewReader(browserExport), ImportOptions{SiteURL: "https://moodle.example.edu.cn/my/"})
	require.NoError(t, err)

	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"MoodleSession", "CASTGC"}, names)
}

func TestImport_Errors(t *testing.T) {
	_, err := Import(strings.NewReader("{}"), ImportOptions{})
	assert.Error(t, err)

	_, err = Import(strings.NewReader("[]"), ImportOptions{SiteURL: "::bad"})
	assert.Error(t, err)
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "browser_cookies.json")
	require.NoError(t, os.WriteFile(src, []byte(browserExport), 0600))
	store := NewFileStore(filepath.Join(dir, "cookies.json"))

	n, err := ImportFile(src, store, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cookies, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, cookies, 3)

	_, err = ImportFile(filepath.Join(dir, "missing.json"), store, ImportOptions{})
	assert.Error(t, err)
}
