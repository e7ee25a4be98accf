package roles

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// file layout:
//
//	roles:
//	  user: []
//	  admin: [getUsers, manageUsers]
type file struct {
	Roles map[string][]Right `yaml:"roles"`
}

func Parse(data []byte) (Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Table{}, fmt.Errorf("parse roles: %w", err)
	}
	return New(f.Roles)
}

func Load(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read roles file: %w", err)
	}
	return Parse(data)
}
