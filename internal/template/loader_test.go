package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplateDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

const retroTemplate = `
package boards

template: retro: {
	name: "Sprint Retrospective"
	columns: [
		{id: "went-well", title: "What went well"},
		{id: "to-improve", title: "What to improve"},
		{id: "action-items", title: "Action items"},
	]
	max_content_length: 500
	card_quota:         10
	reaction_quota:     5
}
`

func TestLoadTemplates_Valid(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"retro.cue": retroTemplate})

	result, errs := LoadTemplates(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, result.Templates, 1)
	assert.Equal(t, 1, result.FileCount)

	tpl, ok := result.Template("retro")
	require.True(t, ok)
	assert.Equal(t, "Sprint Retrospective", tpl.Name)
	assert.Len(t, tpl.Columns, 3)
	assert.Equal(t, "went-well", tpl.Columns[0].ID)
	assert.Equal(t, "What went well", tpl.Columns[0].Title)
	assert.Equal(t, 500, tpl.MaxContentLength)
	assert.Equal(t, 10, tpl.CardQuotaPerUser)
	assert.Equal(t, 5, tpl.ReactionQuotaPerUser)
	assert.False(t, tpl.Closed)
}

func TestLoadTemplates_DefaultsAndClosed(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"minimal.cue": `
package boards

template: archive: {
	name: "Archived Board"
	columns: [{id: "done"}]
	closed: true
}
`})

	result, errs := LoadTemplates(dir, LoadModeFailFast)
	require.Empty(t, errs)
	tpl, ok := result.Template("archive")
	require.True(t, ok)
	assert.True(t, tpl.Closed)
	assert.Equal(t, 0, tpl.CardQuotaPerUser, "omitted quota means unlimited")
	assert.Equal(t, "done", tpl.Columns[0].Title, "column title falls back to id")
}

func TestLoadTemplates_MissingName(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"bad.cue": `
package boards

template: nameless: {
	columns: [{id: "a"}]
}
`})

	_, errs := LoadTemplates(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	var loadErr *LoadError
	require.ErrorAs(t, errs[0], &loadErr)
	assert.Equal(t, ErrCodeTemplateName, loadErr.Code)
}

func TestLoadTemplates_DuplicateColumn(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"bad.cue": `
package boards

template: dup: {
	name: "Dup"
	columns: [{id: "a"}, {id: "a"}]
}
`})

	_, errs := LoadTemplates(dir, LoadModeFailFast)
	require.NotEmpty(t, errs)
	var loadErr *LoadError
	require.ErrorAs(t, errs[0], &loadErr)
	assert.Equal(t, ErrCodeDuplicateColumn, loadErr.Code)
}

func TestLoadTemplates_NegativeQuota(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"bad.cue": `
package boards

template: bad: {
	name: "Bad"
	columns: [{id: "a"}]
	reaction_quota: -1
}
`})

	_, errs := LoadTemplates(dir, LoadModeFailFast)
	require.NotEmpty(t, errs)
	var loadErr *LoadError
	require.ErrorAs(t, errs[0], &loadErr)
	assert.Equal(t, ErrCodeInvalidLimit, loadErr.Code)
}

func TestLoadTemplates_CollectAllReportsEverything(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"bad.cue": `
package boards

template: first: {
	columns: [{id: "a"}]
}
template: second: {
	name: "Second"
}
`})

	result, errs := LoadTemplates(dir, LoadModeCollectAll)
	assert.Len(t, errs, 2, "one missing name, one missing columns")
	assert.Empty(t, result.Templates)
}

func TestLoadTemplates_FailFastStopsEarly(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"bad.cue": `
package boards

template: first: {
	columns: [{id: "a"}]
}
template: second: {
	name: "Second"
}
`})

	_, errs := LoadTemplates(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadTemplates_MissingDirectory(t *testing.T) {
	_, errs := LoadTemplates(filepath.Join(t.TempDir(), "nope"), LoadModeFailFast)
	require.Len(t, errs, 1)
	var loadErr *LoadError
	require.ErrorAs(t, errs[0], &loadErr)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadTemplates_NoCUEFiles(t *testing.T) {
	_, errs := LoadTemplates(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)
	var loadErr *LoadError
	require.ErrorAs(t, errs[0], &loadErr)
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)
}

func TestLoadError_FormatsPosition(t *testing.T) {
	err := &LoadError{Code: ErrCodeGeneric, Message: "boom"}
	assert.Equal(t, "E001: boom", err.Error())
}
