package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
)

var ErrUnknownProfile = errors.New("unknown profile")

// LuaLoader evaluates a Lua profile file. It is injected so this package
// does not depend on the Lua runtime.
type LuaLoader func(path string) (*models.Profile, error)

func Parse(path string) (*models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var p models.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile YAML: %w", err)
	}

	if p.Name == "" {
		p.Name = strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".yaml"), ".yml")
	}

	return &p, nil
}

// LoadAll returns the built-in profiles overlaid with the profiles found in
// dirs. Later directories win over earlier ones.
func LoadAll(dirs []string, loadLua LuaLoader) (map[string]*models.Profile, error) {
	profiles := Builtins()

	for _, dir := range dirs {
		if err := loadFromDir(dir, profiles, loadLua); err != nil {
			// Skip directories that don't exist
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
	}

	return profiles, nil
}

func loadFromDir(dir string, profiles map[string]*models.Profile, loadLua LuaLoader) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		path := filepath.Join(dir, name)

		var p *models.Profile
		switch filepath.Ext(name) {
		case ".yaml", ".yml":
			p, err = Parse(path)
		case ".lua":
			if loadLua == nil {
				continue
			}
			p, err = loadLua(path)
			if err == nil && p.Name == "" {
				p.Name = strings.TrimSuffix(name, ".lua")
			}
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if err := Validate(p); err != nil {
			return fmt.Errorf("invalid profile %s: %w", path, err)
		}

		profiles[p.Name] = p
	}

	return nil
}

func Validate(p *models.Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile must have a name")
	}

	if p.Extension != "" && !strings.HasPrefix(p.Extension, ".") {
		return fmt.Errorf("extension %q must start with a dot", p.Extension)
	}

	for _, arg := range p.Command {
		if arg == "" {
			return fmt.Errorf("command must not contain empty arguments")
		}
	}

	for _, d := range p.Syntax.BlockComments {
		if d.Open == "" || d.Close == "" {
			return fmt.Errorf("block comment needs both open and close delimiters")
		}
	}

	return nil
}

// Find looks a profile up by name. Unknown names get the closest matches
// suggested in the error.
func Find(profiles map[string]*models.Profile, name string) (*models.Profile, error) {
	if p, ok := profiles[name]; ok {
		return p, nil
	}

	names := Names(profiles)
	ranks := fuzzy.RankFindNormalizedFold(name, names)
	sort.Sort(ranks)
	if len(ranks) == 0 {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownProfile, name, strings.Join(names, ", "))
	}

	suggestions := make([]string, 0, len(ranks))
	for _, r := range ranks {
		suggestions = append(suggestions, r.Target)
	}
	return nil, fmt.Errorf("%w %q, did you mean %s?", ErrUnknownProfile, name, strings.Join(suggestions, " or "))
}

func Names(profiles map[string]*models.Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
