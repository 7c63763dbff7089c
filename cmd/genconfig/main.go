// Command genconfig reads config/kernel.yaml and config/levels.yaml and
// emits config/generated_config.go and level/generated_levels.go. It is a
// normal hosted Go program (it runs on the build host, not on a hart), so
// unlike the freestanding kernel packages it is free to use the
// third-party stack: grounded on tinyrange-cc's cmd/ccapp/site_config.go
// for the "parse YAML with gopkg.in/yaml.v3, fail loudly on a malformed
// file" shape, adapted here from a runtime site-config loader to a
// build-time code generator.
//
// Usage: go run ./cmd/genconfig
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type kernelYAML struct {
	MaxCPUNum int `yaml:"max_cpu_num"`
	PageSize  int `yaml:"page_size"`
}

type levelEntry struct {
	Name string `yaml:"name"`
	Rank int    `yaml:"rank"`
}

type levelsYAML struct {
	Levels []levelEntry `yaml:"levels"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "genconfig:", err)
		os.Exit(1)
	}
}

func run() error {
	kernel, err := loadKernelYAML("config/kernel.yaml")
	if err != nil {
		return err
	}
	levels, err := loadLevelsYAML("config/levels.yaml")
	if err != nil {
		return err
	}
	if err := validateLevels(levels); err != nil {
		return fmt.Errorf("config/levels.yaml: %w", err)
	}
	if err := writeGeneratedConfig(kernel, "config/generated_config.go"); err != nil {
		return err
	}
	return writeGeneratedLevels(levels, "level/generated_levels.go")
}

func loadKernelYAML(path string) (kernelYAML, error) {
	var k kernelYAML
	data, err := os.ReadFile(path)
	if err != nil {
		return k, err
	}
	if err := yaml.Unmarshal(data, &k); err != nil {
		return k, fmt.Errorf("%s: %w", path, err)
	}
	if k.MaxCPUNum <= 0 {
		return k, fmt.Errorf("%s: max_cpu_num must be positive", path)
	}
	if k.PageSize <= 0 || k.PageSize&(k.PageSize-1) != 0 {
		return k, fmt.Errorf("%s: page_size must be a power of two", path)
	}
	return k, nil
}

func loadLevelsYAML(path string) (levelsYAML, error) {
	var l levelsYAML
	data, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return l, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// validateLevels enforces spec.md §6: "values must be contiguous from 0".
func validateLevels(l levelsYAML) error {
	ranks := make([]int, len(l.Levels))
	for i, e := range l.Levels {
		ranks[i] = e.Rank
	}
	sort.Ints(ranks)
	for i, r := range ranks {
		if r != i {
			return fmt.Errorf("ranks must be contiguous from 0, got %v", ranks)
		}
	}
	return nil
}

func writeGeneratedConfig(k kernelYAML, path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by cmd/genconfig from config/kernel.yaml. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "// Package config holds the build-time constants cmd/genconfig derives\n")
	fmt.Fprintf(&b, "// from config/kernel.yaml. It has no dependencies of its own so every\n")
	fmt.Fprintf(&b, "// freestanding kernel package can import it without pulling in\n")
	fmt.Fprintf(&b, "// gopkg.in/yaml.v3 (that dependency lives only in the host-side\n")
	fmt.Fprintf(&b, "// generator, per SPEC_FULL.md §10).\n")
	fmt.Fprintf(&b, "package config\n\n")
	fmt.Fprintf(&b, "// MaxCPUNum bounds the logical CPU ID space: LogicalCPUIDs are dense\n")
	fmt.Fprintf(&b, "// indices in [0, MaxCPUNum).\n")
	fmt.Fprintf(&b, "const MaxCPUNum = %d\n\n", k.MaxCPUNum)
	fmt.Fprintf(&b, "// PageSize is the hardware page size in bytes.\n")
	fmt.Fprintf(&b, "const PageSize = %d\n", k.PageSize)
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeGeneratedLevels(l levelsYAML, path string) error {
	sorted := append([]levelEntry(nil), l.Levels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by cmd/genconfig from config/levels.yaml. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package level\n\n")
	fmt.Fprintf(&b, "// LevelName pairs a hierarchy level's name with its Rank(), as declared\n")
	fmt.Fprintf(&b, "// in config/levels.yaml. Used only for introspection (debug dumps, panic\n")
	fmt.Fprintf(&b, "// messages that want to name a level by rank); the hierarchy itself is\n")
	fmt.Fprintf(&b, "// the hand-written typestate below, which config/levels.yaml's ranks\n")
	fmt.Fprintf(&b, "// must agree with (see DESIGN.md).\n")
	fmt.Fprintf(&b, "type LevelName struct {\n\tName string\n\tRank int\n}\n\n")
	fmt.Fprintf(&b, "// Names lists every level in the hierarchy in ascending rank order.\n")
	fmt.Fprintf(&b, "var Names = [...]LevelName{\n")
	for _, e := range sorted {
		fmt.Fprintf(&b, "\t{Name: %q, Rank: %d},\n", e.Name, e.Rank)
	}
	fmt.Fprintf(&b, "}\n\n")
	fmt.Fprintf(&b, "// NameForRank returns the level name registered for rank, or \"\" if none.\n")
	fmt.Fprintf(&b, "func NameForRank(rank int) string {\n")
	fmt.Fprintf(&b, "\tfor _, n := range Names {\n")
	fmt.Fprintf(&b, "\t\tif n.Rank == rank {\n")
	fmt.Fprintf(&b, "\t\t\treturn n.Name\n")
	fmt.Fprintf(&b, "\t\t}\n\t}\n")
	fmt.Fprintf(&b, "\treturn \"\"\n}\n")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
