package authz

import (
	"fmt"
	"sort"

	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// Resolver expande conjuntos de roles al conjunto plano de permisos efectivos.
// Es puro y thread-safe: la tabla es read-only después de NewResolver.
type Resolver struct {
	table RoleTable
}

// NewResolver valida la tabla y construye el resolver.
// Un ciclo en la herencia es un error de configuración (fatal al arranque).
// Un rol que hereda de un rol inexistente se tolera con warning: contribuye
// sólo sus permisos directos.
func NewResolver(table RoleTable) (*Resolver, error) {
	if table == nil {
		table = DefaultRoleTable()
	}
	if cycle := findCycle(table); cycle != "" {
		return nil, fmt.Errorf("authz: role inheritance cycle at %q", cycle)
	}
	for name, def := range table {
		for _, parent := range def.Inherits {
			if _, ok := table[parent]; !ok {
				logger.L().Warn("role inherits from unknown role",
					logger.Component("authz"),
					logger.String("role", name),
					logger.String("inherits", parent),
				)
			}
		}
	}
	return &Resolver{table: table}, nil
}

// Resolve expande los roles de entrada al conjunto deduplicado de permisos,
// siguiendo la herencia. Roles desconocidos no aportan permisos (no es error).
// El resultado se devuelve ordenado para que la resolución sea determinística.
func (r *Resolver) Resolve(roles []string) []string {
	seen := make(map[string]struct{})
	perms := make(map[string]struct{})

	stack := make([]string, 0, len(roles))
	stack = append(stack, roles...)

	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// visited-set: garantiza terminación aunque el grafo tuviera un ciclo
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		def, ok := r.table[name]
		if !ok {
			continue // rol desconocido: cero grants extra
		}
		for _, p := range def.Permissions {
			perms[p] = struct{}{}
		}
		stack = append(stack, def.Inherits...)
	}

	out := make([]string, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Merge une los permisos resueltos por rol con permisos extra otorgados
// explícitamente. Deduplicado y ordenado.
func (r *Resolver) Merge(roles, extra []string) []string {
	perms := make(map[string]struct{})
	for _, p := range r.Resolve(roles) {
		perms[p] = struct{}{}
	}
	for _, p := range extra {
		if p != "" {
			perms[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Known reporta si el rol existe en la tabla.
func (r *Resolver) Known(role string) bool {
	_, ok := r.table[role]
	return ok
}

// findCycle retorna el nombre de un rol involucrado en un ciclo de herencia,
// o "" si el grafo es acíclico. DFS con coloreo.
func findCycle(table RoleTable) string {
	const (
		white = 0 // sin visitar
		gray  = 1 // en el stack actual
		black = 2 // terminado
	)
	color := make(map[string]int, len(table))

	var visit func(name string) string
	visit = func(name string) string {
		def, ok := table[name]
		if !ok {
			return ""
		}
		color[name] = gray
		for _, parent := range def.Inherits {
			switch color[parent] {
			case gray:
				return parent
			case white:
				if c := visit(parent); c != "" {
					return c
				}
			}
		}
		color[name] = black
		return ""
	}

	for name := range table {
		if color[name] == white {
			if c := visit(name); c != "" {
				return c
			}
		}
	}
	return ""
}
