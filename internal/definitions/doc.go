// Package definitions loads smart list definitions from a directory of YAML
// or JSON files, one list per file.
package definitions
