package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/recman/internal/ir"
)

// EntityPath is the top-level CUE field holding entity definitions.
const EntityPath = "entity"

// BuildDir loads the CUE package in dir and returns its value.
func BuildDir(dir string) (cue.Value, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

// BuildFiles compiles each file and unifies the results, so entities may
// be spread across files without sharing a CUE package.
func BuildFiles(paths ...string) (cue.Value, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString("{}")
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return cue.Value{}, fmt.Errorf("read schema %s: %w", p, err)
		}
		v := ctx.CompileBytes(src, cue.Filename(p))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		value = value.Unify(v)
	}
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

// CompileEntities compiles every entity under the top-level "entity" field.
// Compile errors are collected, not fail-fast.
func CompileEntities(v cue.Value) ([]ir.EntityDescriptor, []error) {
	entities := v.LookupPath(cue.ParsePath(EntityPath))
	if !entities.Exists() {
		return nil, []error{errors.New("no entities found in schema")}
	}

	iter, err := entities.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		descs []ir.EntityDescriptor
		errs  []error
	)
	for iter.Next() {
		desc, err := CompileEntity(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("entity.%s: %w", selectorName(iter.Selector()), err))
			continue
		}
		descs = append(descs, *desc)
	}
	return descs, errs
}

// LoadDir loads, compiles and validates the schema in dir.
func LoadDir(dir string) (ir.Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema directory: not a directory: %s", dir)
	}
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	v, err := BuildDir(dir)
	if err != nil {
		return nil, err
	}
	return catalogFrom(v)
}

// LoadFiles loads, compiles and validates the given schema files.
func LoadFiles(paths ...string) (ir.Catalog, error) {
	v, err := BuildFiles(paths...)
	if err != nil {
		return nil, err
	}
	return catalogFrom(v)
}

func catalogFrom(v cue.Value) (ir.Catalog, error) {
	descs, errs := CompileEntities(v)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	catalog := ir.NewCatalog(descs...)
	if verrs := ValidateCatalog(catalog); len(verrs) > 0 {
		joined := make([]error, len(verrs))
		for i, e := range verrs {
			joined[i] = e
		}
		return nil, errors.Join(joined...)
	}
	return catalog, nil
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

func sortedNames(catalog ir.Catalog) []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
