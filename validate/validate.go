// Command validate provides a small CLI that validates page catalog files in
// the ../configs directory (or the paths given as arguments). It checks:
//   - YAML/JSON structure
//   - Unique, non-empty page ids
//   - Absolute http(s) URLs
//   - Non-empty mask selectors
//
// It also reports pages without a label and the groups each catalog defines.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/kiosk-shell/catalog"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateCatalog loads and validates a single catalog file.
func validateCatalog(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	pages, err := catalog.LoadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if err := catalog.Validate(pages); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Pages: %d", len(pages)))

	groups := map[string]int{}
	masked := 0
	for _, p := range pages {
		if strings.TrimSpace(p.Label) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("⚠ Page %q has no label", p.ID))
		}
		if p.Group != "" {
			groups[p.Group]++
		}
		if len(p.MaskSelectors) > 0 {
			masked++
		}
	}

	if len(groups) > 0 {
		names := make([]string, 0, len(groups))
		for g := range groups {
			names = append(names, fmt.Sprintf("%s (%d)", g, groups[g]))
		}
		sort.Strings(names)
		result.Errors = append(result.Errors, "✓ Groups: "+strings.Join(names, ", "))
	}
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Masked pages: %d/%d", masked, len(pages)))

	return result
}

// catalogFiles returns the catalog files under dir.
func catalogFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// main validates each catalog, printing a concise report and exiting with
// non-zero status if any are invalid.
func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		var err error
		files, err = catalogFiles("../configs")
		if err != nil {
			fmt.Printf("Error finding catalog files: %v\n", err)
			os.Exit(1)
		}
	}

	allValid := true
	for _, file := range files {
		result := validateCatalog(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All catalogs are valid!")
	} else {
		fmt.Println("❌ Some catalogs have errors")
		os.Exit(1)
	}
}
