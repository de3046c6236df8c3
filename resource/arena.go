// Package resource loads arena layouts from YAML files.
package resource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nightwatch-game/server/game/ai"
	"gopkg.in/yaml.v3"
)

// ArenaDef is one arena file: static walls, the player spawn point and the
// enemies with their patrol routes.
type ArenaDef struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	Spawn   ai.Vec3    `yaml:"spawn"`
	Walls   []WallDef  `yaml:"walls"`
	Enemies []EnemyDef `yaml:"enemies"`

	// Source is the file the definition was read from.
	Source string `yaml:"-"`
}

type WallDef struct {
	ID   string  `yaml:"id"`
	MinX float64 `yaml:"min_x"`
	MinZ float64 `yaml:"min_z"`
	MaxX float64 `yaml:"max_x"`
	MaxZ float64 `yaml:"max_z"`
}

type EnemyDef struct {
	ID        string    `yaml:"id"`
	Position  ai.Vec3   `yaml:"position"`
	Yaw       float64   `yaml:"yaw"` // degrees, 0 faces +Z
	Waypoints []ai.Vec3 `yaml:"waypoints"`
	// AI overrides the server-wide tuning field by field.
	AI ai.Override `yaml:"ai"`
}

// IsArenaFile reports whether path looks like an arena definition.
func IsArenaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadArena reads and validates one arena file. A missing id defaults to the
// file name without extension.
func LoadArena(path string) (*ArenaDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: load %s: %w", path, err)
	}
	var def ArenaDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("resource: unmarshal %s: %w", path, err)
	}
	def.Source = path
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if def.Name == "" {
		def.Name = def.ID
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("resource: %s: %w", path, err)
	}
	return &def, nil
}

// LoadDir loads every arena file in dir, sorted by ID.
func LoadDir(dir string) ([]*ArenaDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("resource: read dir %s: %w", dir, err)
	}
	var defs []*ArenaDef
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !IsArenaFile(e.Name()) {
			continue
		}
		def, err := LoadArena(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[def.ID]; ok {
			return nil, fmt.Errorf("resource: arena %q defined in both %s and %s", def.ID, prev, def.Source)
		}
		seen[def.ID] = def.Source
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// Validate fills default wall IDs and reports every structural problem.
func (d *ArenaDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("arena id is required"))
	}
	for i := range d.Walls {
		w := &d.Walls[i]
		if w.ID == "" {
			w.ID = fmt.Sprintf("wall-%d", i+1)
		}
		if w.MaxX <= w.MinX || w.MaxZ <= w.MinZ {
			errs = append(errs, fmt.Errorf("wall %s has no area", w.ID))
		}
	}
	if len(d.Enemies) == 0 {
		errs = append(errs, errors.New("arena has no enemies"))
	}
	ids := make(map[string]bool, len(d.Enemies))
	for i, e := range d.Enemies {
		switch {
		case e.ID == "":
			errs = append(errs, fmt.Errorf("enemy #%d has no id", i+1))
		case ids[e.ID]:
			errs = append(errs, fmt.Errorf("duplicate enemy id %q", e.ID))
		}
		ids[e.ID] = true
	}
	return errors.Join(errs...)
}
