// Package config loads the YAML daemon configuration files for
// menmosd and amphora, grounded on the teacher's cmd/warren/apply.go
// idiom: a plain struct tagged with yaml, loaded with os.ReadFile
// followed by yaml.Unmarshal.
package config
