package template

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during template loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Template validation errors
	ErrCodeTemplateName    = "E101" // Missing template name
	ErrCodeTemplateColumns = "E102" // No columns defined
	ErrCodeDuplicateColumn = "E103" // Duplicate column id
	ErrCodeInvalidLimit    = "E104" // Negative quota or length limit
)

// LoadError represents an error that occurred during template loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResult contains the results of loading templates from a directory.
type LoadResult struct {
	Templates []BoardTemplate
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Template returns the loaded template with the given key.
func (r *LoadResult) Template(key string) (BoardTemplate, bool) {
	for _, t := range r.Templates {
		if t.Key == key {
			return t, true
		}
	}
	return BoardTemplate{}, false
}

// LoadTemplates loads and validates CUE board templates from a directory.
// Templates live under the top-level "template" struct, keyed by label.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadTemplates(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("template directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing template directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	templatesVal := value.LookupPath(cue.ParsePath("template"))
	if !templatesVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no templates found: expected a top-level \"template\" struct"}}
	}

	iter, iterErr := templatesVal.Fields()
	if iterErr != nil {
		return result, append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating templates: %v", iterErr)})
	}
	for iter.Next() {
		tpl, compileErrs := compileTemplate(iter.Label(), iter.Value())
		if len(compileErrs) > 0 {
			errs = append(errs, compileErrs...)
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Templates = append(result.Templates, *tpl)
	}

	if len(result.Templates) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no templates found"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// compileTemplate parses one template struct into a BoardTemplate.
// Returns every violation it finds, positioned where possible.
func compileTemplate(key string, v cue.Value) (*BoardTemplate, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: err.Error(), Pos: v.Pos()}}
	}

	tpl := &BoardTemplate{Key: key}
	var errs []error

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		errs = append(errs, &LoadError{Code: ErrCodeTemplateName, Message: fmt.Sprintf("template %s: name is required", key), Pos: v.Pos()})
	} else if name, err := nameVal.String(); err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeTemplateName, Message: fmt.Sprintf("template %s: name must be a string", key), Pos: nameVal.Pos()})
	} else if name == "" {
		errs = append(errs, &LoadError{Code: ErrCodeTemplateName, Message: fmt.Sprintf("template %s: name is empty", key), Pos: nameVal.Pos()})
	} else {
		tpl.Name = name
	}

	columns, colErrs := compileColumns(key, v)
	errs = append(errs, colErrs...)
	tpl.Columns = columns

	for _, field := range []struct {
		path string
		dst  *int
	}{
		{"max_content_length", &tpl.MaxContentLength},
		{"card_quota", &tpl.CardQuotaPerUser},
		{"reaction_quota", &tpl.ReactionQuotaPerUser},
	} {
		val := v.LookupPath(cue.ParsePath(field.path))
		if !val.Exists() {
			continue
		}
		n, err := val.Int64()
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeInvalidLimit, Message: fmt.Sprintf("template %s: %s must be an integer", key, field.path), Pos: val.Pos()})
			continue
		}
		if n < 0 {
			errs = append(errs, &LoadError{Code: ErrCodeInvalidLimit, Message: fmt.Sprintf("template %s: %s must be non-negative", key, field.path), Pos: val.Pos()})
			continue
		}
		*field.dst = int(n)
	}

	closedVal := v.LookupPath(cue.ParsePath("closed"))
	if closedVal.Exists() {
		closed, err := closedVal.Bool()
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("template %s: closed must be a bool", key), Pos: closedVal.Pos()})
		} else {
			tpl.Closed = closed
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return tpl, nil
}

func compileColumns(key string, v cue.Value) ([]Column, []error) {
	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return nil, []error{&LoadError{Code: ErrCodeTemplateColumns, Message: fmt.Sprintf("template %s: at least one column is required", key), Pos: v.Pos()}}
	}

	iter, err := columnsVal.List()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeTemplateColumns, Message: fmt.Sprintf("template %s: columns must be a list", key), Pos: columnsVal.Pos()}}
	}

	var columns []Column
	var errs []error
	seen := make(map[string]bool)
	for iter.Next() {
		colVal := iter.Value()
		var col Column

		idVal := colVal.LookupPath(cue.ParsePath("id"))
		id, idErr := idVal.String()
		if !idVal.Exists() || idErr != nil || id == "" {
			errs = append(errs, &LoadError{Code: ErrCodeTemplateColumns, Message: fmt.Sprintf("template %s: column id is required", key), Pos: colVal.Pos()})
			continue
		}
		if seen[id] {
			errs = append(errs, &LoadError{Code: ErrCodeDuplicateColumn, Message: fmt.Sprintf("template %s: duplicate column id %q", key, id), Pos: colVal.Pos()})
			continue
		}
		seen[id] = true
		col.ID = id

		titleVal := colVal.LookupPath(cue.ParsePath("title"))
		if titleVal.Exists() {
			if title, err := titleVal.String(); err == nil {
				col.Title = title
			}
		}
		if col.Title == "" {
			col.Title = id
		}
		columns = append(columns, col)
	}

	if len(columns) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeTemplateColumns, Message: fmt.Sprintf("template %s: at least one column is required", key), Pos: columnsVal.Pos()})
	}
	return columns, errs
}
