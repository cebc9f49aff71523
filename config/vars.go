package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// HomeEnv overrides the directory holding vars.txt (default ~/.velicia).
const HomeEnv = "VELICIA_HOME"

const varsFileName = "vars.txt"

// VarFile is a flat name=value file. Blank lines and lines starting with #
// are ignored; values may be wrapped in double quotes.
type VarFile struct {
	Path string
}

// DefaultVarFile returns the vars.txt under $VELICIA_HOME or ~/.velicia.
func DefaultVarFile() (*VarFile, error) {
	path, err := GetVarsFilePath()
	if err != nil {
		return nil, err
	}
	return &VarFile{Path: path}, nil
}

func GetVarsFilePath() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return filepath.Join(dir, varsFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".velicia", varsFileName), nil
}

// Read parses the file. A missing file reads as empty.
func (f *VarFile) Read() (map[string]string, error) {
	vars := make(map[string]string)

	file, err := os.Open(f.Path)
	if os.IsNotExist(err) {
		return vars, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%s:%d: expected name=value", f.Path, lineNo)
		}
		vars[strings.TrimSpace(name)] = unquote(value)
	}
	return vars, scanner.Err()
}

// Write replaces the file contents. The new file is written beside the old
// one and renamed into place, so a crash never leaves it half written.
func (f *VarFile) Write(vars map[string]string) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, varsFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, name := range sortedKeys(vars) {
		fmt.Fprintf(w, "%s=%s\n", name, vars[name])
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

// Update reads the file, applies fn and writes the result back.
func (f *VarFile) Update(fn func(vars map[string]string) error) error {
	vars, err := f.Read()
	if err != nil {
		return err
	}
	if err := fn(vars); err != nil {
		return err
	}
	return f.Write(vars)
}

func unquote(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}

func LoadVarsFromFile() (map[string]string, error) {
	f, err := DefaultVarFile()
	if err != nil {
		return nil, err
	}
	return f.Read()
}

func GetVar(name string) (string, error) {
	vars, err := LoadVarsFromFile()
	if err != nil {
		return "", err
	}
	value, ok := vars[name]
	if !ok {
		return "", fmt.Errorf("variable '%s' not found", name)
	}
	return value, nil
}

func SetVar(name, value string) error {
	if name == "" || strings.ContainsAny(name, "=\n") {
		return fmt.Errorf("invalid variable name %q", name)
	}
	if strings.Contains(value, "\n") {
		return fmt.Errorf("variable '%s': value must be a single line", name)
	}
	f, err := DefaultVarFile()
	if err != nil {
		return err
	}
	return f.Update(func(vars map[string]string) error {
		vars[name] = value
		return nil
	})
}

func DeleteVar(name string) error {
	f, err := DefaultVarFile()
	if err != nil {
		return err
	}
	return f.Update(func(vars map[string]string) error {
		if _, ok := vars[name]; !ok {
			return fmt.Errorf("variable '%s' not found", name)
		}
		delete(vars, name)
		return nil
	})
}

// ListVars returns the names stored in vars.txt, sorted.
func ListVars() ([]string, error) {
	vars, err := LoadVarsFromFile()
	if err != nil {
		return nil, err
	}
	return sortedKeys(vars), nil
}

// ResolveVariableValue returns the effective value for a variable.
// Priority: vars.txt > environment > default from config.
func ResolveVariableValue(v *Variable) (string, error) {
	fileVars, err := LoadVarsFromFile()
	if err != nil {
		return "", err
	}
	return resolveWith(fileVars, v), nil
}

func resolveWith(fileVars map[string]string, v *Variable) string {
	if fileValue, ok := fileVars[v.Name]; ok {
		return fileValue
	}
	if v.Env != "" {
		if envValue := os.Getenv(v.Env); envValue != "" {
			return envValue
		}
	}
	return v.Default
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
