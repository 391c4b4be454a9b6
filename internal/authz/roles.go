// Package authz resuelve permisos efectivos a partir de roles con herencia.
//
// El grafo de roles y las tablas rol→permisos son configuración estática:
// se construyen una vez al arranque (tabla built-in o archivo YAML) y son
// inmutables en runtime. Nada acá hace I/O después de la construcción.
package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoleDef describe un rol: de quién hereda y qué permisos directos otorga.
type RoleDef struct {
	Inherits    []string `yaml:"inherits"`
	Permissions []string `yaml:"permissions"`
}

// RoleTable es el mapa completo nombre de rol → definición.
type RoleTable map[string]RoleDef

// DefaultRoleTable es la jerarquía built-in del producto:
// Admin > Moderator > Member > Guest, más Support como rama lateral.
func DefaultRoleTable() RoleTable {
	return RoleTable{
		"Guest": {
			Permissions: []string{
				"profiles.read",
				"appointments.read",
			},
		},
		"Member": {
			Inherits: []string{"Guest"},
			Permissions: []string{
				"profiles.edit.own",
				"appointments.create",
				"appointments.cancel.own",
				"matches.request",
			},
		},
		"Moderator": {
			Inherits: []string{"Member"},
			Permissions: []string{
				"profiles.flag",
				"matches.review",
				"appointments.cancel.any",
				"reports.read",
			},
		},
		"Support": {
			Inherits: []string{"Guest"},
			Permissions: []string{
				"tickets.read",
				"tickets.respond",
			},
		},
		"Admin": {
			Inherits: []string{"Moderator", "Support"},
			Permissions: []string{
				"users.ban",
				"users.delete",
				"roles.assign",
				"secrets.rotate",
				"tokens.revoke.any",
			},
		},
	}
}

// LoadRoleTable lee una tabla de roles desde un archivo YAML.
// Formato:
//
//	Moderator:
//	  inherits: [Member]
//	  permissions: [matches.review, reports.read]
func LoadRoleTable(path string) (RoleTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("authz: read role table: %w", err)
	}
	var t RoleTable
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("authz: parse role table: %w", err)
	}
	return t, nil
}
